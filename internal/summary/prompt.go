package summary

import (
	"strconv"
	"strings"
)

// Prompt templates carried over from the diary product. Placeholders are
// substituted by render; no template engine or inheritance involved.
const (
	turnPromptTemplate = `请对以下对话进行简化，并使其内容更加丰富和积极乐观，将总结控制在{max_chars}字以内。

之前的日记内容：
{prior}

当前对话内容：
{conversation}

简化后的对话：`

	turnPromptNoPriorTemplate = `请对以下对话进行简化，并使其内容更加丰富和积极乐观，将总结控制在{max_chars}字以内。

当前对话内容：
{conversation}

简化后的对话：`

	dailyPromptTemplate = `请对以下内容进行总结，并使其积极乐观，将总结控制在{max_chars}字以内：

{content}`

	monthlyPromptTemplate = `请对以下每日总结进行月度总结，并使其积极乐观，将总结控制在{max_chars}字以内：

{content}`
)

// render substitutes {name} placeholders in a template. Pure function.
func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func renderTurnPrompt(conversation, prior string, maxChars int) string {
	vars := map[string]string{
		"conversation": conversation,
		"max_chars":    strconv.Itoa(maxChars),
	}
	if prior == "" {
		return render(turnPromptNoPriorTemplate, vars)
	}
	vars["prior"] = prior
	return render(turnPromptTemplate, vars)
}

func renderDailyPrompt(content string, maxChars int) string {
	return render(dailyPromptTemplate, map[string]string{
		"content":   content,
		"max_chars": strconv.Itoa(maxChars),
	})
}

func renderMonthlyPrompt(content string, maxChars int) string {
	return render(monthlyPromptTemplate, map[string]string{
		"content":   content,
		"max_chars": strconv.Itoa(maxChars),
	})
}
