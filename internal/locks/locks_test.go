package locks

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestAcquire_Release(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	locker := NewLocker(client, 30*time.Second)

	mock.Regexp().ExpectSetNX("polyglot:lock:detect:42", `^[a-f0-9]{32}$`, 30*time.Second).SetVal(true)
	mock.Regexp().ExpectEval(regexp.QuoteMeta(releaseScript), []string{"polyglot:lock:detect:42"}, `^[a-f0-9]{32}$`).SetVal(int64(1))

	lease, acquired, err := locker.Acquire(context.Background(), "detect:42")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected lease to be acquired")
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Second release is a no-op.
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("double release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcquire_AlreadyHeld(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	locker := NewLocker(client, time.Minute)

	mock.Regexp().ExpectSetNX("polyglot:lock:detect:42", `^[a-f0-9]{32}$`, time.Minute).SetVal(false)

	lease, acquired, err := locker.Acquire(context.Background(), "detect:42")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acquired {
		t.Fatal("expected lease to be held elsewhere")
	}
	if lease != nil {
		t.Fatal("expected nil lease when not acquired")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
