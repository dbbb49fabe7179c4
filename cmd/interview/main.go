// Command interview runs a single interview session from the terminal
// and prints the final assessment as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxhire/interview-agent/internal/engine"
	"github.com/voxhire/interview-agent/internal/models"
	"github.com/voxhire/interview-agent/internal/setup"
)

func main() {
	startTime := time.Now()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	candidateName := flag.String("candidate", "", "Candidate name")
	experienceLevel := flag.String("experience", "", "Candidate experience level (junior, mid, senior)")
	background := flag.String("background", "", "Candidate background summary")
	roleTitle := flag.String("role", "", "Role title being interviewed for")
	meetingRef := flag.String("meeting", "", "Meeting reference to join")
	duration := flag.Int("duration", 0, "Interview duration in minutes (0 = configured default)")
	maxQuestions := flag.Int("max-questions", 0, "Question cap (0 = configured default)")
	focusAreas := flag.String("focus", "", "Comma-separated topics to favor")
	resumeID := flag.String("resume", "", "Resume a paused session from its checkpoint")
	output := flag.String("output", "-", "Assessment output file ('-' for stdout)")

	flag.Parse()

	if *resumeID == "" {
		if *candidateName == "" {
			log.Fatal().Msg("required flag -candidate not provided")
		}
		if *roleTitle == "" {
			log.Fatal().Msg("required flag -role not provided")
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := setup.LoadConfig()

	deps, err := setup.Wire(ctx, cfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	var focus []string
	if *focusAreas != "" {
		for _, area := range strings.Split(*focusAreas, ",") {
			focus = append(focus, strings.TrimSpace(area))
		}
	}

	sessionID, err := deps.Sessions.StartSession(ctx, engine.StartRequest{
		SessionID:  *resumeID,
		MeetingRef: *meetingRef,
		Candidate: models.CandidateInfo{
			Name:            *candidateName,
			ExperienceLevel: *experienceLevel,
			Background:      *background,
		},
		Role: models.RoleInfo{Title: *roleTitle},
		Config: models.SessionConfig{
			DurationMinutes: *duration,
			MaxQuestions:    *maxQuestions,
			FocusAreas:      focus,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start session")
	}

	log.Info().Str("session_id", sessionID).Msg("Interview running")

	// SIGINT cancels the session; the engine aborts with a partial
	// assessment, which we still print.
	go func() {
		<-ctx.Done()
		_ = deps.Sessions.Cancel(sessionID)
	}()

	result, err := deps.Sessions.Wait(context.Background(), sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Session failed")
	}

	writeAssessment(*output, result)

	log.Info().
		Str("session_id", sessionID).
		Float64("overall_score", result.OverallScore).
		Str("recommendation", string(result.Recommendation)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Interview finished")
}

func writeAssessment(path string, result models.Assessment) {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write assessment")
	}
}
