package dispatch

import (
	"encoding/json"
	"strings"
	"time"

	xerrors "Freelance-Autopilot/internal/errors"
)

// RunRequest 是一次异步运行请求。
type RunRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate 检查请求 ID 与用户是否齐全。
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return xerrors.New(xerrors.CodeValidation, "运行请求缺少 ID")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return xerrors.New(xerrors.CodeMissingUser, "", xerrors.WithMetadata("request_id", r.ID))
	}
	return nil
}

func (r RunRequest) encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "编码运行请求失败")
	}
	return data, nil
}

func decodeRequest(payload []byte) (RunRequest, error) {
	var req RunRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, xerrors.Wrap(xerrors.CodeValidation, err, "无法解析运行请求")
	}
	return req, req.Validate()
}
