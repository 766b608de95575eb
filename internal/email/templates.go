package email

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}

// VisitDetails carries what every visit email shows.
type VisitDetails struct {
	TenantName    string
	PropertyTitle string
	LeadName      string
	LeadEmail     string
	LeadPhone     string
	Options       []time.Time
	ConfirmedAt   time.Time
	Reason        string
}

// FormatVisitTime renders t as "segunda-feira, 08/01/2024 às 09:00".
func FormatVisitTime(t time.Time) string {
	return fmt.Sprintf("%s, %s às %s", weekdayNames[t.Weekday()], t.Format("02/01/2006"), t.Format("15:04"))
}

// BuildVisitRequested is sent to the tenant when a lead proposes visit times.
func BuildVisitRequested(details VisitDetails) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Nova solicitação de visita%s.\n\n", propertySuffix(details.PropertyTitle))
	fmt.Fprintf(&body, "Cliente: %s\n", details.LeadName)
	if details.LeadEmail != "" {
		fmt.Fprintf(&body, "E-mail: %s\n", details.LeadEmail)
	}
	if details.LeadPhone != "" {
		fmt.Fprintf(&body, "Telefone: %s\n", details.LeadPhone)
	}
	body.WriteString("\nHorários sugeridos:\n")
	for i, option := range details.Options {
		fmt.Fprintf(&body, "  %d. %s\n", i+1, FormatVisitTime(option))
	}
	body.WriteString("\nConfirme um dos horários no painel.\n")

	return Message{
		Subject: "Nova solicitação de visita" + propertySuffix(details.PropertyTitle),
		Body:    body.String(),
		ReplyTo: details.LeadEmail,
	}
}

// BuildVisitConfirmed is sent to the lead once a time is confirmed.
func BuildVisitConfirmed(details VisitDetails) Message {
	body := fmt.Sprintf(
		"Olá %s,\n\nSua visita%s está confirmada para %s.\n\n%s\n",
		firstName(details.LeadName),
		propertySuffix(details.PropertyTitle),
		FormatVisitTime(details.ConfirmedAt),
		signature(details.TenantName),
	)
	return Message{
		Subject: "Visita confirmada" + propertySuffix(details.PropertyTitle),
		Body:    body,
	}
}

// BuildVisitCancelled is sent to the lead when a visit is cancelled.
func BuildVisitCancelled(details VisitDetails) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Olá %s,\n\nSua visita%s foi cancelada.\n", firstName(details.LeadName), propertySuffix(details.PropertyTitle))
	if reason := strings.TrimSpace(details.Reason); reason != "" {
		fmt.Fprintf(&body, "Motivo: %s\n", reason)
	}
	fmt.Fprintf(&body, "\nEntre em contato para agendar um novo horário.\n\n%s\n", signature(details.TenantName))
	return Message{
		Subject: "Visita cancelada" + propertySuffix(details.PropertyTitle),
		Body:    body.String(),
	}
}

// BuildVisitReminder is sent to the lead ahead of a confirmed visit.
func BuildVisitReminder(details VisitDetails) Message {
	body := fmt.Sprintf(
		"Olá %s,\n\nLembrete: sua visita%s acontece %s.\n\n%s\n",
		firstName(details.LeadName),
		propertySuffix(details.PropertyTitle),
		FormatVisitTime(details.ConfirmedAt),
		signature(details.TenantName),
	)
	return Message{
		Subject: "Lembrete de visita" + propertySuffix(details.PropertyTitle),
		Body:    body,
	}
}

func propertySuffix(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return " - " + title
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "cliente"
	}
	return fields[0]
}

func signature(tenantName string) string {
	tenantName = strings.TrimSpace(tenantName)
	if tenantName == "" {
		return "Equipe de atendimento"
	}
	return "Equipe " + tenantName
}
