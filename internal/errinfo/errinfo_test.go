package errinfo

import "testing"

func TestSessionNotFound(t *testing.T) {
	err := SessionNotFound("abc")
	if err.ErrorCode != CodeSessionNotFound || err.Phase != PhaseSession {
		t.Fatalf("expected session not found in session phase")
	}
	if err.SessionID != "abc" {
		t.Fatalf("expected session id to be set")
	}
	if len(err.Actions) == 0 || err.Actions[0] != ActionCreateSession {
		t.Fatalf("expected create_session action")
	}
}

func TestFileWriteFailedIsRetryable(t *testing.T) {
	err := FileWriteFailed(PhaseDocument, "disk")
	if !err.Retryable || err.Actions[0] != ActionRetry {
		t.Fatalf("expected retryable write failure")
	}
}

func TestValidationHelpers(t *testing.T) {
	validation := ValidationFailed(PhaseSession, "bad")
	if validation.ErrorCode != CodeValidationFailed || validation.Detail != "bad" {
		t.Fatalf("expected validation failed")
	}
	structure := StructureInvalid(PhaseRebuild, "no survey").WithSubphase(SubphaseClone)
	if structure.ErrorCode != CodeStructureInvalid || structure.Subphase != SubphaseClone {
		t.Fatalf("expected structure invalid with subphase")
	}
	if NotFound(PhaseReview, "x").ErrorCode != CodeNotFound {
		t.Fatalf("expected not found")
	}
	if UserCanceled(PhaseSession, "").Retryable {
		t.Fatalf("cancel should not be retryable")
	}
}
