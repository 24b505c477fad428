// Package prompt holds the fixed model instructions and per-language templates.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lawrag/internal/domain/language"
)

// System instructions.
const (
	LegalAssistant = "You are a legal assistant who helps people understand laws. " +
		"Respond in the language of the context."

	GroundedAnswer = LegalAssistant + " Answer only from the provided articles. " +
		"If they do not cover the question, say so. Cite articles only by the titles given."

	DataExtraction = "You are an expert in extracting structured data. " +
		"You will be given unstructured text from a legal document, " +
		"and you must break it into items/paragraphs. " +
		`Respond with a JSON object {"points":[{"paragraph":"..."}]}. ` +
		"Respond in the language of the context."

	ImageExtraction = "You are an expert in extracting structured data. " +
		"You will be given a photo or scan of a legal document. " +
		"Read its text and break it into items/paragraphs. " +
		`Respond with a JSON object {"points":[{"paragraph":"..."}]}. ` +
		"Respond in the language of the document."
)

type templates struct {
	expand         string
	answer         string
	questionLabel  string
	articlesLabel  string
	answerFooter   string
	documentLabel  string
	sourceLabel    string
	sectionLabel   string
	chapterLabel   string
	titleLabel     string
	textLabel      string
	expandCountFmt string
	documentQuery  string
}

var byLanguage = map[language.Language]templates{
	language.Russian: {
		expand: "На основе вопроса пользователя составь список запросов по RAG базе данных с законами, " +
			"чтобы получить релевантные статьи по законам Кыргызстана.",
		expandCountFmt: "Составь ровно %d различных запросов.",
		answer:         "На основе следующих релевантных статей закона, ответь на вопрос пользователя.",
		questionLabel:  "Вопрос",
		articlesLabel:  "Релевантные статьи",
		answerFooter:   "Пожалуйста, дай подробный ответ, ссылаясь на конкретные статьи.",
		documentLabel:  "Документ",
		sourceLabel:    "Источник",
		sectionLabel:   "Раздел",
		chapterLabel:   "Глава",
		titleLabel:     "Название",
		textLabel:      "Текст",
		documentQuery:  "Проанализируй этот документ и проверь его на соответствие законодательству.",
	},
	language.Kyrgyz: {
		expand: "Колдонуучунун суроосунун негизинде Кыргызстан мыйзамдары боюнча RAG маалымат базасынан " +
			"тиешелүү беренелерди алуу үчүн суроо-талаптардын тизмесин түз.",
		expandCountFmt: "Так %d ар башка суроо-талап түз.",
		answer:         "Төмөндө берилген мыйзамдын тиешелүү беренелеринин негизинде колдонуучунун суроосуна жооп бер.",
		questionLabel:  "Суроо",
		articlesLabel:  "Тиешелүү беренелер",
		answerFooter:   "Сураныч, так беренелерге шилтеме берүү менен кеңири жооп бер.",
		documentLabel:  "Документ",
		sourceLabel:    "Булак",
		sectionLabel:   "Бөлүм",
		chapterLabel:   "Глава",
		titleLabel:     "Аталышы",
		textLabel:      "Текст",
		documentQuery:  "Бул документти талдап, мыйзамдарга шайкештигин текшериңиз.",
	},
}

func forLanguage(lang language.Language) templates {
	if t, ok := byLanguage[lang]; ok {
		return t
	}
	return byLanguage[language.Russian]
}

// Expansion renders the query expansion prompt asking for n reformulations.
func Expansion(query string, n int, lang language.Language) string {
	t := forLanguage(lang)
	var b strings.Builder
	b.WriteString(t.expand)
	b.WriteString(" ")
	fmt.Fprintf(&b, t.expandCountFmt, n)
	b.WriteString("\n")
	b.WriteString(`Ответ / Жооп: JSON {"questions":[{"question":"..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(t.questionLabel)
	b.WriteString(": ")
	b.WriteString(query)
	return b.String()
}

// ContextArticle is the subset of an article rendered into the answer prompt.
type ContextArticle struct {
	Source  string
	Section string
	Chapter string
	Title   string
	Text    string
}

// Answer renders the answer prompt with the serialized context in the given order.
func Answer(question string, articles []ContextArticle, lang language.Language) string {
	t := forLanguage(lang)
	var b strings.Builder
	b.WriteString(t.answer)
	b.WriteString("\n\n")
	b.WriteString(t.questionLabel)
	b.WriteString(": ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(t.articlesLabel)
	b.WriteString(":\n")
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s %d:\n", t.documentLabel, i+1)
		writeField(&b, t.sourceLabel, a.Source)
		writeField(&b, t.sectionLabel, a.Section)
		writeField(&b, t.chapterLabel, a.Chapter)
		writeField(&b, t.titleLabel, a.Title)
		writeField(&b, t.textLabel, a.Text)
	}
	b.WriteString("\n\n")
	b.WriteString(t.answerFooter)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

// DefaultDocumentQuestion is asked about an uploaded file when the user gave no question.
func DefaultDocumentQuestion(lang language.Language) string {
	return forLanguage(lang).documentQuery
}

// DocumentQuestion joins the user question with the extracted document paragraphs.
func DocumentQuestion(question string, paragraphs []string) string {
	return "Question: " + question + "\n\nDocument:\n" + strings.Join(paragraphs, "\n")
}

// TrimJSON cuts model output down to the outermost JSON object,
// dropping code fences and chatter around it. Returns s unchanged when no object is found.
func TrimJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
