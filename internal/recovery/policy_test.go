package recovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gambtho/container-assist/internal/recovery"
	"github.com/gambtho/container-assist/pkg/models"
)

func TestCanRecoverTransientError(t *testing.T) {
	p := recovery.NewPolicy(3)
	if !p.CanRecover(errors.New("connection reset by peer"), 0) {
		t.Error("transient error reported unrecoverable")
	}
}

func TestCanRecoverFatalPatterns(t *testing.T) {
	p := recovery.NewPolicy(3)
	fatal := []string{
		"permission denied on /var/run/docker.sock",
		"registry returned 401 Unauthorized",
		"403 Forbidden",
		"access denied for user",
		"invalid credentials",
		"FATAL: database does not exist",
	}
	for _, msg := range fatal {
		if p.CanRecover(errors.New(msg), 0) {
			t.Errorf("CanRecover(%q) = true, want false", msg)
		}
	}
}

func TestCanRecoverExhaustedAttempts(t *testing.T) {
	p := recovery.NewPolicy(2)
	err := errors.New("timeout")
	if !p.CanRecover(err, 1) {
		t.Error("attempt below budget reported unrecoverable")
	}
	if p.CanRecover(err, 2) {
		t.Error("attempt at budget reported recoverable")
	}
}

func TestCanRecoverZeroBudgetDisables(t *testing.T) {
	p := recovery.NewPolicy(0)
	if p.CanRecover(errors.New("timeout"), 0) {
		t.Error("zero retry budget should disable recovery")
	}
}

func TestCanRecoverNilError(t *testing.T) {
	p := recovery.NewPolicy(3)
	if p.CanRecover(nil, 0) {
		t.Error("CanRecover(nil) = true, want false")
	}
}

func TestClassify(t *testing.T) {
	p := recovery.NewPolicy(3)

	var fatal *models.FatalOperationError
	if err := p.Classify("build-image", errors.New("unauthorized")); !errors.As(err, &fatal) {
		t.Errorf("Classify(unauthorized) = %T, want *FatalOperationError", err)
	}

	var recoverable *models.RecoverableOperationError
	cause := errors.New("i/o timeout")
	err := p.Classify("build-image", cause)
	if !errors.As(err, &recoverable) {
		t.Fatalf("Classify(timeout) = %T, want *RecoverableOperationError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("classified error does not unwrap to its cause")
	}
}

func TestRecoverProducesDegradedResult(t *testing.T) {
	p := recovery.NewPolicy(3)
	req := models.OperationRequest{Operation: "scan-image", SessionID: "sess-1"}

	result := p.Recover(context.Background(), req, errors.New("scanner crashed"), time.Now().Add(-time.Second))

	if !result.Success || !result.Recovered {
		t.Errorf("Recover() success=%v recovered=%v, want true/true", result.Success, result.Recovered)
	}
	if result.Payload["recovered"] != true || result.Payload["degraded"] != true {
		t.Errorf("Recover() payload = %v, missing recovered/degraded markers", result.Payload)
	}
	if result.Payload["failure"] != "scanner crashed" {
		t.Errorf("Recover() failure = %v, want original message", result.Payload["failure"])
	}
	if result.DurationMs < 1000 {
		t.Errorf("Recover() durationMs = %d, want ≥ 1000", result.DurationMs)
	}
}
