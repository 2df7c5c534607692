package triage

import (
	"fmt"
	"strings"

	"inbox-triage/internal/model"
)

// CautionRule is the tie-break instruction given to the oracle. It biases
// ambiguous cases toward the more urgent interpretation.
const CautionRule = "Always err on the side of caution - if in doubt between two urgency levels, choose the higher one. " +
	"If in doubt between two categories, choose the one that implies the higher urgency."

var categoryDefinitions = map[model.Category]string{
	model.CategoryClinical:       "Medical issues, symptoms, test results, health concerns",
	model.CategoryPrescription:   "Medication-related issues, refill requests, dosage questions",
	model.CategoryAdministrative: "Appointments, billing, records, referrals",
	model.CategoryInformational:  "General information, thank you notes, updates",
}

var urgencyDefinitions = map[int]string{
	model.UrgencyImmediate: "Potentially life-threatening, requires immediate attention",
	model.UrgencyUrgent:    "Urgent but not immediately life-threatening",
	model.UrgencyPriority:  "Higher priority than routine, should be addressed soon",
	model.UrgencyRoutine:   "Normal priority, can be handled within standard timeframes",
	model.UrgencyLow:       "Low priority, informational only",
}

// Prompt is one request to the classification oracle.
type Prompt struct {
	System string
	User   string
}

// SystemPrompt returns the fixed instruction sent with every message.
func SystemPrompt() string {
	var cats []string
	for _, c := range model.Categories() {
		cats = append(cats, string(c))
	}

	var b strings.Builder
	b.WriteString("You are an expert healthcare message triage assistant. ")
	b.WriteString("Your task is to independently analyze two aspects of each message:\n\n")
	fmt.Fprintf(&b, "1. CATEGORY: Classify the message into one of the following categories: %s\n", strings.Join(cats, ", "))
	b.WriteString("2. URGENCY LEVEL: Assign an urgency level from 1-5, with 5 being most urgent\n\n")

	b.WriteString("Category definitions:\n")
	for _, c := range model.Categories() {
		fmt.Fprintf(&b, "- %s: %s\n", c, categoryDefinitions[c])
	}

	b.WriteString("\nUrgency level definitions:\n")
	for _, level := range model.UrgencyLevels() {
		fmt.Fprintf(&b, "- %d (%s): %s\n", level, model.UrgencyName(level), urgencyDefinitions[level])
	}

	b.WriteString("\nAnalyze both the subject and message content to determine both aspects.\n")
	b.WriteString("Respond with a JSON object containing:\n")
	b.WriteString("1. \"category\": The assigned category (one of the categories listed above)\n")
	b.WriteString("2. \"urgency_level\": A number between 1 and 5 representing urgency\n")
	b.WriteString("3. \"confidence\": A number between 0 and 1 indicating your confidence in the classification\n")
	b.WriteString("4. \"reasoning\": A brief explanation of why you assigned this category and urgency level\n\n")
	b.WriteString(CautionRule)
	return b.String()
}

// UserPrompt renders the per-message request.
func UserPrompt(m model.Message) string {
	return fmt.Sprintf(`Please classify the following healthcare message:

Subject: %s

Message:
%s

Date/Time: %s

Determine both the category and urgency level of this message.`,
		m.Subject, m.Message, m.Datetime.Format("2006-01-02 15:04:05"))
}

// BuildPrompt assembles the system and user instructions for m.
func BuildPrompt(m model.Message) Prompt {
	return Prompt{System: SystemPrompt(), User: UserPrompt(m)}
}

// Description returns a markdown explanation of the classification scheme.
func Description() string {
	var b strings.Builder
	b.WriteString("# Healthcare Message Triage Classification System\n\n")
	b.WriteString("## Overview\n")
	b.WriteString("Each incoming message is classified independently by:\n")
	b.WriteString("1. Message category (what the message is about)\n")
	b.WriteString("2. Urgency level (how quickly it needs attention)\n\n")

	b.WriteString("## Message Categories\n\n")
	for _, c := range model.Categories() {
		fmt.Fprintf(&b, "### %s\n%s\n\n", c, categoryDefinitions[c])
	}

	b.WriteString("## Urgency Levels\n\n")
	for _, level := range model.UrgencyLevels() {
		fmt.Fprintf(&b, "### Level %d (%s)\n%s\n\n", level, model.UrgencyName(level), urgencyDefinitions[level])
	}

	b.WriteString("## Ambiguity\n")
	b.WriteString(CautionRule + "\n\n")
	b.WriteString("## Failures\n")
	fmt.Fprintf(&b, "When a message cannot be classified it is filed as %s with urgency %d (%s) and confidence %.1f, so it still reaches a clinician.\n",
		DefaultCategory, DefaultUrgency, model.UrgencyName(DefaultUrgency), DefaultConfidence)
	return b.String()
}
