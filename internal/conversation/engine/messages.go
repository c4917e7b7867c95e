package engine

import (
	"fmt"
	"strings"
	"time"

	"safetyreport_backend/internal/reports"
	"safetyreport_backend/internal/taxonomy"
)

// Reply texts. Validation failures get a specific corrective prompt; every
// other failure mode collapses into the one apologetic message so internal
// failures are never leaked to the reporter.
const (
	msgSendPhotoToStart = "Please send a photo of the hazard to start a new safety report."
	msgResendPhoto      = "Sorry, I couldn't analyze that photo. Please try sending it again."
	msgResetConfirm     = "Okay, the report has been cancelled. Send a photo whenever you want to start a new one."
	msgInternalError    = "Sorry, something went wrong on our side. Please try again in a moment."

	msgAskLocation          = "Where did you observe this? Please reply with the location."
	msgAskBreachSource      = "Who or what caused this breach? (e.g. Subcontractor, Equipment)"
	msgAskSeverity          = "Please specify if the severity is 1. High, 2. Medium, or 3. Low."
	msgAskStopWork          = "Do you need to stop work immediately? (Yes/No)"
	msgAskResponsiblePerson = "Who is the responsible person for follow-up? Please reply with their name."

	// genericAdvice is the fallback control measure when retrieval or advice
	// generation is unavailable.
	genericAdvice = "Please assess site conditions carefully and stop work if unsafe."
)

const (
	maxSummaryChars = 1590
	defaultSource   = "Standard Safety Protocols"
)

// classificationReply is the StartHandler's reply: the AI verdict plus the
// location prompt.
func classificationReply(observationType, code, name string) string {
	return fmt.Sprintf("I classified this as:\n\n🔍 %s\n📂 %s %s\n\n%s",
		observationType, code, name, msgAskLocation)
}

// confirmReply asks the user to confirm or correct the classification.
func confirmReply(code, name string) string {
	return fmt.Sprintf("You reported: %s %s. Is the classification correct?\n\nReply *Yes* to confirm, send a category code (e.g. %s), or describe the hazard in your own words.",
		code, name, code)
}

// confirmRetryReply re-prompts after a code lookup miss or mapper no-match.
func confirmRetryReply(snapshot taxonomy.Snapshot) string {
	var b strings.Builder
	b.WriteString("I couldn't match that to a category. Please reply *Yes* to keep the current one, or pick a code:\n")
	for _, e := range snapshot.Entries {
		fmt.Fprintf(&b, "%s %s\n", e.Code, e.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// severityReply acknowledges the severity and either opens the stop-work gate
// or moves on to the responsible person.
func severityReply(severity, advice string, stopWorkGate bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Got it: *%s* severity.\n\n", severity)
	if advice != "" {
		fmt.Fprintf(&b, "⚠️ *Safety Check*:\nBased on our safety manual: \"%s\"\n\n", advice)
	}
	if stopWorkGate {
		b.WriteString(msgAskStopWork)
	} else {
		b.WriteString(msgAskResponsiblePerson)
	}
	return b.String()
}

// summaryReply is the final report summary sent on finalization.
func summaryReply(rec reports.Record) string {
	stopWork := "NO"
	if rec.StopWork {
		stopWork = "YES"
	}

	advice := rec.ControlMeasure
	if advice == "" {
		advice = genericAdvice
	}

	imageLink := rec.ImageURL
	if imageLink == "" {
		imageLink = "Image Link Not Available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Report submitted.\n\n")
	fmt.Fprintf(&b, "🔍 Hazard Type: %s\n", rec.ObservationType)
	fmt.Fprintf(&b, "📂 Category: %s %s\n", rec.ClassificationCode, rec.ClassificationName)
	fmt.Fprintf(&b, "📍 Location: %s\n", rec.Location)
	fmt.Fprintf(&b, "👤 Source: %s\n", rec.BreachSource)
	fmt.Fprintf(&b, "⚠️ Severity: %s\n", rec.Severity)
	fmt.Fprintf(&b, "🛑 Stop Work: %s\n", stopWork)
	fmt.Fprintf(&b, "👤 Responsible: %s\n", rec.ResponsiblePerson)
	fmt.Fprintf(&b, "🔒 Control measures: %s\n", advice)
	fmt.Fprintf(&b, "Date: %s\n", rec.CompletedAt.UTC().Format(time.DateOnly))
	fmt.Fprintf(&b, "🖼️ %s\n", imageLink)
	fmt.Fprintf(&b, "Log ID %d", rec.ReportNumber)

	if rec.Reference != "" && rec.Reference != defaultSource {
		fmt.Fprintf(&b, "\n\n📚 Source: %s", rec.Reference)
	}

	msg := b.String()
	if len(msg) > maxSummaryChars {
		msg = msg[:maxSummaryChars] + "..."
	}
	return msg
}
