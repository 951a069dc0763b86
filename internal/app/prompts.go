package app

import (
	"encoding/json"
	"fmt"
)

// researcherInstructions rides along as the instructions field on every call
// in a research session so each phase speaks with the same persona.
const researcherInstructions = "You are an expert Deep Researcher.\n" +
	"You provide complete and in depth research to the user."

const evaluateVerdictPrompt = "Does this information answer the research goal? Answer Yes or No only"

func clarifyPrompt(topic string) string {
	return fmt.Sprintf("Ask 5 numbered clarifying questions about the topic of research: %s. "+
		"The goal of the questions is to understand the intented purpose of the research. "+
		"Reply only with the questions.", topic)
}

func planPrompt(topic string, questions, answers []string) string {
	return fmt.Sprintf("Using the user answers %s to the %s, write a goal sentence and 5 web searches "+
		"queries for the research about %s\n"+
		"Output: A json list of the goal and the 5 web queries that will reach it.\n"+
		`Format: {"goal": "...", "queries": ["q1", ....]}`,
		promptJSON(answers), promptJSON(questions), topic)
}

func searchPrompt(query string) string {
	return "search: " + query
}

func evaluateInput(goal string, collected []SearchArtifact) []InputMessage {
	return []InputMessage{
		{Role: "developer", Content: "Research goal: " + goal},
		{Role: "assistant", Content: promptJSON(collected)},
		{Role: "user", Content: evaluateVerdictPrompt},
	}
}

func regenerateInput(goal string, collected []SearchArtifact) []InputMessage {
	return []InputMessage{
		{Role: "assistant", Content: "Current data: " + promptJSON(collected)},
		{Role: "user", Content: fmt.Sprintf("This has not met the goal: %s. Write 5 other web searchs to achieve the goal", goal)},
	}
}

func reportInput(goal string, collected []SearchArtifact) []InputMessage {
	return []InputMessage{
		{Role: "developer", Content: fmt.Sprintf("Write a complete and detail report about research goal: %s "+
			"Cite Sources inline using [n] and append a reference list mapping [n] to url", goal)},
		{Role: "assistant", Content: promptJSON(collected)},
	}
}

// promptJSON serializes prompt payloads. Inputs are plain strings and small
// structs, so a marshal failure only happens if a type above changes shape.
func promptJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
