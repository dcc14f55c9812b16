package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeInvitationPreview = "invitation:preview"
	TypeInvitationPDF     = "invitation:pdf"
	TypeTemplatePreview   = "template:preview"
)

// InvitationPayload 描述邀请函截图/导出任务所需的最小信息。
type InvitationPayload struct {
	InvitationID  uint   `json:"invitation_id"`
	CorrelationID string `json:"correlation_id"`
}

// TemplatePreviewPayload 描述模板缩略图任务。
type TemplatePreviewPayload struct {
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewInvitationPreviewTask 构造邀请函预览截图任务。
func NewInvitationPreviewTask(id uint, correlationID string) (*asynq.Task, error) {
	return newInvitationTask(TypeInvitationPreview, id, correlationID)
}

// NewInvitationPDFTask 构造邀请函 PDF 导出任务。
func NewInvitationPDFTask(id uint, correlationID string) (*asynq.Task, error) {
	return newInvitationTask(TypeInvitationPDF, id, correlationID)
}

func newInvitationTask(taskType string, id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(InvitationPayload{
		InvitationID:  id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, payload), nil
}

// NewTemplatePreviewTask 构造模板缩略图任务。
func NewTemplatePreviewTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{
		TemplateID:    id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeTemplatePreview, err)
	}
	return asynq.NewTask(TypeTemplatePreview, payload), nil
}
