package phases

import "strings"

// Knowledge levels accepted in phase 1 requests.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var knowledgeLevelGuidance = map[string]string{
	LevelBeginner:     "Include basic terms. 8-12 concepts max.",
	LevelIntermediate: "Skip basics. 5-8 concepts.",
	LevelAdvanced:     "Only specialized terms. 3-5 concepts max.",
}

// NormalizeKnowledgeLevel maps level to a known level, defaulting to beginner.
func NormalizeKnowledgeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if _, ok := knowledgeLevelGuidance[level]; ok {
		return level
	}
	return LevelBeginner
}

func levelGuidance(level string) string {
	return knowledgeLevelGuidance[NormalizeKnowledgeLevel(level)]
}

const keyConceptsInstructions = `Extract key concepts from the transcript. Be extremely concise.

For each concept provide:
- term: The name
- definition: One sentence max
- relevance: One sentence max, why it matters HERE
- timestamp: When first mentioned, as HH:MM:SS from the transcript

CRITICAL: Return concepts in CHRONOLOGICAL ORDER by timestamp (earliest first).

Keep definitions SHORT. No historical context. No "how it works". Just the essentials.`

const thesisArgumentInstructions = `You are an expert educator who deeply understands arguments.
Summarize the main thesis and break down all argument chains in the content.

1. IDENTIFY THE MAIN THESIS
   - What is the central argument or point being made?
   - Summarize in 1-2 clear sentences.

2. MAP ARGUMENT CHAINS
   For each chain give a short title and:
   - premise: the starting facts or assumptions
   - reasoning_steps: the steps in order
   - conclusion: what is concluded
   - implications: what follows from it

Respond in the schema provided. Be concise but complete.`

const connectionsInstructions = `You relate ideas to each other.
Given key concepts from a single video, find the meaningful relationships
between pairs of concepts. Only connect concepts from the list, using their
exact terms. Describe each relationship in one sentence, then write a short
synthesis of how the concepts work together as a whole.`

const claimVerifierInstructions = `You are a careful fact checker.
For each factual claim made in the content, judge it using well established
knowledge:
- verdict: supported, disputed, misleading or unverifiable
- evidence: one or two sentences explaining the verdict
- confidence: high, medium or low

Prefer "unverifiable" over guessing. Then rate the overall credibility of the
content (high, mixed or low) and summarize your assessment in 2-3 sentences.`

const quizGeneratorInstructions = `You write comprehension quizzes for people who just watched a video.
Write 5-10 multiple choice questions mixing recall, understanding and
application. Each question has 4 options, exactly one correct answer copied
verbatim from the options, and a one sentence explanation. Finish with a
short quiz_focus describing what the quiz tests.`
