package models

import (
	"time"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Stage is a phase of the interview with its own question budget and
// time share. The active stage only ever advances forward.
type Stage string

const (
	StageIntroduction    Stage = "introduction"
	StageBackground      Stage = "background"
	StageTechnicalSkills Stage = "technical_skills"
	StageProblemSolving  Stage = "problem_solving"
	StageBehavioral      Stage = "behavioral"
	StageClosing         Stage = "closing"
)

// StageOrder is the fixed interview progression. No stage is skipped
// except a forced jump to StageClosing when the session duration expires.
var StageOrder = []Stage{
	StageIntroduction,
	StageBackground,
	StageTechnicalSkills,
	StageProblemSolving,
	StageBehavioral,
	StageClosing,
}

// NextStage returns the stage following s in StageOrder. The second
// return is false when s is the last stage (or unknown).
func NextStage(s Stage) (Stage, bool) {
	for i, stage := range StageOrder {
		if stage == s && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return StageClosing, false
}

// StageBudget bounds how many questions a stage may ask and which share
// of the session it should take. Question counts are soft targets; the
// session duration is the hard ceiling.
type StageBudget struct {
	MaxQuestions int
	TimeShare    float64
}

// StageBudgets is the per-stage question/time allocation.
var StageBudgets = map[Stage]StageBudget{
	StageIntroduction:    {MaxQuestions: 2, TimeShare: 0.10},
	StageBackground:      {MaxQuestions: 3, TimeShare: 0.15},
	StageTechnicalSkills: {MaxQuestions: 4, TimeShare: 0.30},
	StageProblemSolving:  {MaxQuestions: 3, TimeShare: 0.20},
	StageBehavioral:      {MaxQuestions: 3, TimeShare: 0.15},
	StageClosing:         {MaxQuestions: 1, TimeShare: 0.10},
}

type Category string

const (
	CategoryTechnicalSkills Category = "technical_skills"
	CategoryCommunication   Category = "communication"
	CategoryProblemSolving  Category = "problem_solving"
	CategoryCulturalFit     Category = "cultural_fit"
)

// StageCategory maps each interview stage to the assessment category its
// turns contribute to. Fixed table; the engine never branches on question
// content, only on stage identity.
var StageCategory = map[Stage]Category{
	StageIntroduction:    CategoryCommunication,
	StageBackground:      CategoryCommunication,
	StageTechnicalSkills: CategoryTechnicalSkills,
	StageProblemSolving:  CategoryProblemSolving,
	StageBehavioral:      CategoryCulturalFit,
	StageClosing:         CategoryCommunication,
}

// CategoryWeights are the fixed weights used for the overall score.
var CategoryWeights = map[Category]float64{
	CategoryTechnicalSkills: 0.35,
	CategoryCommunication:   0.25,
	CategoryProblemSolving:  0.25,
	CategoryCulturalFit:     0.15,
}

type CandidateInfo struct {
	Name            string `json:"name"`
	ExperienceLevel string `json:"experience_level,omitempty"`
	Background      string `json:"background,omitempty"`
}

type RoleInfo struct {
	Title string `json:"title"`
	Level string `json:"level,omitempty"`
}

// SessionConfig carries the per-session options recognized by the engine.
// DurationMinutes is a hard time ceiling, MaxQuestions a soft cap.
// FocusAreas and ExperienceLevel are passed opaquely to question
// generation. LogLevel affects verbosity only.
type SessionConfig struct {
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	MaxQuestions    int      `json:"max_questions,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	LogLevel        string   `json:"log_level,omitempty"`
}

// ScoreBreakdown holds the four sub-scores of one answer, each in
// [0,10], and the fixed-weight final. Immutable once produced.
type ScoreBreakdown struct {
	Content       float64 `json:"content"`
	Technical     float64 `json:"technical_accuracy"`
	Communication float64 `json:"communication"`
	Relevance     float64 `json:"relevance"`
	Final         float64 `json:"final"`
}

// Turn is one question/answer exchange. Turns are appended to the
// transcript in issuance order and never mutated afterwards.
type Turn struct {
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
	Stage      Stage          `json:"stage"`
	FollowUp   bool           `json:"follow_up"`
	Score      ScoreBreakdown `json:"score"`
	AskedAt    time.Time      `json:"asked_at"`
}

// Session is the mutable interview state, owned exclusively by the
// conversation engine. Collaborators read it and return results; only
// the engine commits transitions.
type Session struct {
	ID         string        `json:"id"`
	MeetingRef string        `json:"meeting_ref"`
	Candidate  CandidateInfo `json:"candidate"`
	Role       RoleInfo      `json:"role"`
	Config     SessionConfig `json:"config"`
	Stage      Stage         `json:"stage"`
	Status     Status        `json:"status"`
	Transcript []Turn        `json:"transcript"`
	StartedAt  time.Time     `json:"started_at"`
}

type Recommendation string

const (
	RecommendationStrongHire   Recommendation = "strong_hire"
	RecommendationHire         Recommendation = "hire"
	RecommendationNoHire       Recommendation = "no_hire"
	RecommendationStrongNoHire Recommendation = "strong_no_hire"
)

// Assessment is the final, immutable output of a session. Partial is set
// when the session aborted before reaching the closing stage.
// InsufficientData marks assessments built from an empty transcript; in
// that case OverallScore holds the -1 sentinel.
type Assessment struct {
	SessionID           string               `json:"session_id"`
	OverallScore        float64              `json:"overall_score"`
	CategoryScores      map[Category]float64 `json:"category_scores"`
	Recommendation      Recommendation       `json:"recommendation"`
	Strengths           []string             `json:"strengths"`
	AreasForImprovement []string             `json:"areas_for_improvement"`
	Transcript          []Turn               `json:"transcript"`
	Partial             bool                 `json:"partial"`
	InsufficientData    bool                 `json:"insufficient_data"`
	FailureReason       string               `json:"failure_reason,omitempty"`
	FinalizedAt         time.Time            `json:"finalized_at"`
}

type FaultKind string

const (
	FaultNetworkDrop              FaultKind = "network_drop"
	FaultLowAudioQuality          FaultKind = "low_audio_quality"
	FaultLowRecognitionConfidence FaultKind = "low_recognition_confidence"
	FaultCandidateSilence         FaultKind = "candidate_silence"
	FaultCandidateDisconnect      FaultKind = "candidate_disconnect"
)

type FaultSeverity string

const (
	SeverityWarning FaultSeverity = "warning"
	SeverityFatal   FaultSeverity = "fatal"
)

// FaultEvent is a typed signal describing a recoverable or escalating
// failure condition. Ephemeral; consumed by the recovery manager.
type FaultEvent struct {
	Kind     FaultKind     `json:"kind"`
	Severity FaultSeverity `json:"severity"`
	At       time.Time     `json:"at"`
	Detail   string        `json:"detail,omitempty"`
}

// CategoryAccumulator is the serializable running mean for one category.
type CategoryAccumulator struct {
	Sum    float64 `json:"sum"`
	Weight float64 `json:"weight"`
}

// Snapshot is the checkpoint written at every pause and read at resume.
// It carries the session identity alongside the conversation state so a
// paused interview can be rebuilt after a process restart.
type Snapshot struct {
	SessionID    string                           `json:"session_id"`
	MeetingRef   string                           `json:"meeting_ref,omitempty"`
	Candidate    CandidateInfo                    `json:"candidate"`
	Role         RoleInfo                         `json:"role"`
	Config       SessionConfig                    `json:"config"`
	Status       Status                           `json:"status"`
	Stage        Stage                            `json:"stage"`
	Transcript   []Turn                           `json:"transcript"`
	Accumulators map[Category]CategoryAccumulator `json:"accumulators"`
	StartedAt    time.Time                        `json:"started_at"`
	CapturedAt   time.Time                        `json:"captured_at"`
}
