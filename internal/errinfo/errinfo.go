package errinfo

// ErrorInfo is the structured error payload returned over RPC.
type ErrorInfo struct {
	ErrorCode   string   `json:"error_code"`
	Phase       string   `json:"phase,omitempty"`
	Subphase    string   `json:"subphase,omitempty"`
	Retryable   bool     `json:"retryable"`
	Actions     []string `json:"actions,omitempty"`
	WorkbenchID string   `json:"workbench_id,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
	Detail      string   `json:"detail,omitempty"`
}

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeStructureInvalid = "STRUCTURE_INVALID"
	CodeFileReadFailed   = "FILE_READ_FAILED"
	CodeFileWriteFailed  = "FILE_WRITE_FAILED"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeUserCanceled     = "USER_CANCELED"
)

const (
	ActionRetry         = "retry"
	ActionOpenSettings  = "open_settings"
	ActionCreateSession = "create_session"
)

const (
	PhaseDocument = "document"
	PhaseSession  = "session"
	PhaseRebuild  = "rebuild"
	PhaseReview   = "review"
	PhaseSettings = "settings"
)

const (
	SubphaseClone         = "clone"
	SubphaseMerge         = "merge"
	SubphaseMergeByFilter = "merge_by_filter"
	SubphaseExport        = "export"
	SubphaseDiff          = "diff"
)

func (e *ErrorInfo) WithSubphase(subphase string) *ErrorInfo {
	e.Subphase = subphase
	return e
}

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func NotFound(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNotFound,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

// StructureInvalid reports a workbook missing a worksheet, table or
// required column.
func StructureInvalid(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeStructureInvalid,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileReadFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileWriteFailed,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func SessionNotFound(sessionID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSessionNotFound,
		Phase:     PhaseSession,
		Retryable: false,
		Actions:   []string{ActionCreateSession},
		SessionID: sessionID,
	}
}

func UserCanceled(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUserCanceled,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}
