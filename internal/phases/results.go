package phases

import "github.com/tjfontaine/youtube-reviewer/internal/models"

// Error-shaped results. Every list is empty (not null) and the message
// field carries a human-readable error.

const (
	msgKeyConceptsFailed = "Error extracting key concepts"
	msgNoCaptions        = "Error: No captions to analyze"
	msgCaptionsNotCached = "Error: captions not found in cache"
	msgThesisFailed      = "Error generating thesis"
	msgNoKeyConcepts     = "Error: No key concepts provided"
	msgConnectionsFailed = "Error generating connections"
	msgNoClaimContent    = "Error: No claims provided"
	msgClaimsFailed      = "Error generating claim verification"
	msgNoQuizContent     = "Error: No content provided"
	msgQuizFailed        = "Error generating quiz"
	credibilityError     = "Error"
)

func keyConceptsError(videoID, msg string) *models.KeyConceptsResponse {
	return &models.KeyConceptsResponse{
		KeyConcepts: []models.KeyConcept{},
		VideoID:     videoID,
		Error:       msg,
	}
}

func thesisError(msg string) *models.ThesisArgumentResponse {
	return &models.ThesisArgumentResponse{
		MainThesis:     msg,
		ArgumentChains: []models.ArgumentChain{},
	}
}

func connectionsError(msg string) *models.ConnectionsResponse {
	return &models.ConnectionsResponse{
		Connections: []models.Connection{},
		Synthesis:   msg,
	}
}

func claimsError(msg string) *models.ClaimVerificationResponse {
	return &models.ClaimVerificationResponse{
		VerifiedClaims:     []models.VerifiedClaim{},
		OverallCredibility: credibilityError,
		Summary:            msg,
	}
}

func quizError(msg string) *models.QuizResponse {
	return &models.QuizResponse{
		Questions: []models.QuizQuestion{},
		QuizFocus: msg,
	}
}
