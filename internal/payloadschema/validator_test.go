package payloadschema

import (
	"encoding/json"
	"testing"
)

func TestValidateDetectionTaskPayload(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"payload_version":"v1","post_uuid":"7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc","reason":"viewed"}`)
	task, err := ValidateDetectionTaskPayload(payload)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if task.PostUUID != "7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc" {
		t.Fatalf("unexpected post_uuid: %s", task.PostUUID)
	}
	if task.Reason != "viewed" {
		t.Fatalf("unexpected reason: %s", task.Reason)
	}
}

func TestValidateDetectionTaskPayload_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad version":     `{"payload_version":"v2","post_uuid":"7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc","reason":"viewed"}`,
		"bad uuid":        `{"payload_version":"v1","post_uuid":"not-a-uuid","reason":"viewed"}`,
		"bad reason":      `{"payload_version":"v1","post_uuid":"7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc","reason":"whenever"}`,
		"missing field":   `{"payload_version":"v1","reason":"viewed"}`,
		"extra field":     `{"payload_version":"v1","post_uuid":"7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc","reason":"viewed","x":1}`,
		"trailing data":   `{"payload_version":"v1","post_uuid":"7b8a4de9-04a8-4cf6-92d3-10a2fa3601cc","reason":"viewed"}{}`,
		"not even object": `"hello"`,
	}

	for name, raw := range cases {
		if _, err := ValidateDetectionTaskPayload(json.RawMessage(raw)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
