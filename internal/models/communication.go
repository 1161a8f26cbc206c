package models

import "time"

type CommunicationType string

const (
	CommunicationEmail   CommunicationType = "email"
	CommunicationCall    CommunicationType = "call"
	CommunicationMeeting CommunicationType = "meeting"
)

// Communication is one logged touch with a procurement officer. Rows are append-only.
type Communication struct {
	ID           int64             `json:"id"`
	OfficerID    int64             `json:"officer_id"`
	Date         time.Time         `json:"communication_date"`
	Type         CommunicationType `json:"communication_type"`
	Subject      string            `json:"subject"`
	Outcome      string            `json:"outcome"`
	FollowUpDate *time.Time        `json:"follow_up_date"`
	CreatedAt    time.Time         `json:"created_at"`
}

type TemplateType string

const (
	TemplateIntroduction TemplateType = "introduction"
	TemplateFollowUp     TemplateType = "follow_up"
	TemplateAlert        TemplateType = "alert"
)

type NotificationTemplate struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Type      TemplateType `json:"template_type"`
	Subject   string       `json:"subject"`
	Body      string       `json:"body"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}
