package mailer

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	"leadflow/internal/models"
)

// Sender delivers a single email. The cron jobs depend on this interface so
// reminder dispatch can be exercised without an SMTP server.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail over SMTP via gomail.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail via smtp: %w", err)
	}
	return nil
}

var taskReminderTmpl = template.Must(template.New("task_reminder").Parse(`<p>Hi {{.UserName}},</p>
{{if .IsOverdue}}<p>The following task is <strong>overdue</strong>:</p>{{else}}<p>The following task is due soon:</p>{{end}}
<p><strong>{{.Title}}</strong><br>
Due: {{.DueDate}}<br>
Priority: {{.Priority}}</p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p>— leadflow</p>`))

var followUpReminderTmpl = template.Must(template.New("follow_up_reminder").Parse(`<p>Hi {{.UserName}},</p>
<p>A follow-up with <strong>{{.Company}}</strong> is due.</p>
<p>Contact: {{.ContactName}}{{if .ContactEmail}} ({{.ContactEmail}}){{end}}<br>
Scheduled: {{.ScheduledAt}}</p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
<p>— leadflow</p>`))

// TaskReminderSubject returns the subject line for a task reminder.
func TaskReminderSubject(task *models.Task, isOverdue bool) string {
	if isOverdue {
		return fmt.Sprintf("Overdue task: %s", task.Title)
	}
	return fmt.Sprintf("Task due soon: %s", task.Title)
}

// TaskReminderBody renders the task reminder email body.
func TaskReminderBody(task *models.Task, userName string, isOverdue bool) (string, error) {
	var body bytes.Buffer
	err := taskReminderTmpl.Execute(&body, map[string]interface{}{
		"UserName":    userName,
		"IsOverdue":   isOverdue,
		"Title":       task.Title,
		"DueDate":     task.DueDate.Format(time.RFC1123),
		"Priority":    task.Priority,
		"Description": task.Description,
	})
	if err != nil {
		return "", fmt.Errorf("render task reminder: %w", err)
	}
	return body.String(), nil
}

// FollowUpReminderSubject returns the subject line for a follow-up reminder.
func FollowUpReminderSubject(lead *models.Lead) string {
	return fmt.Sprintf("Follow-up due: %s", lead.Company)
}

// FollowUpReminderBody renders the follow-up reminder email body.
func FollowUpReminderBody(lead *models.Lead, schedule *models.FollowUpSchedule, userName string) (string, error) {
	var body bytes.Buffer
	err := followUpReminderTmpl.Execute(&body, map[string]interface{}{
		"UserName":     userName,
		"Company":      lead.Company,
		"ContactName":  lead.Name,
		"ContactEmail": lead.Email,
		"ScheduledAt":  schedule.ScheduledAt.Format(time.RFC1123),
		"Notes":        schedule.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("render follow-up reminder: %w", err)
	}
	return body.String(), nil
}
