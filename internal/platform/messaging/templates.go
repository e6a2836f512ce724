package messaging

import (
	"fmt"
	"strings"
	"sync"
)

// Template defines a reusable message template.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateEngine manages message templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:   "medical_history",
			Name: "Medical History Form",
			Body: "Dear {{patient_name}}, please fill in your medical history form before your visit at {{clinic_name}}: {{form_link}}",
		},
		{
			ID:   "payment_receipt",
			Name: "Payment Receipt",
			Body: "Dear {{patient_name}}, we received your payment of {{amount}} on {{date}}. Thank you for visiting {{clinic_name}}.",
		},
		{
			ID:   "appointment_reminder",
			Name: "Appointment Reminder",
			Body: "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}} with {{dentist_name}}.",
		},
		{
			ID:   "follow_up",
			Name: "Follow Up",
			Body: "Dear {{patient_name}}, it has been a while since your last visit to {{clinic_name}}. Contact us to schedule a check-up.",
		},
		{
			ID:   "payment_overdue",
			Name: "Payment Overdue",
			Body: "Dear {{patient_name}}, you have an outstanding balance of {{amount_due}} at {{clinic_name}}. Please contact us to settle it.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using
// the supplied data map. Every placeholder in the template must be covered
// by data; an unresolved placeholder is an error so broken text never
// reaches a patient.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	body := t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		body = strings.ReplaceAll(body, placeholder, v)
	}
	if start := strings.Index(body, "{{"); start >= 0 {
		end := strings.Index(body[start:], "}}")
		if end < 0 {
			end = len(body) - start - 2
		}
		return "", fmt.Errorf("template %q: no data for placeholder %s", templateID, body[start:start+end+2])
	}
	return body, nil
}
