package main

import (
	"context"
	"encoding/json"
	"fmt"

	"dartreport/internal/domain"
	"dartreport/internal/jobstatus"
	"dartreport/internal/orchestrator"
	"dartreport/internal/sink"
)

// parsePhase validates --phase against the five resumable stage names,
// defaulting an empty string to a full run starting at persona.
func parsePhase(s string) (jobstatus.Stage, error) {
	switch jobstatus.Stage(s) {
	case "":
		return jobstatus.StagePersona, nil
	case jobstatus.StagePersona, jobstatus.StageCurate, jobstatus.StageOutline, jobstatus.StageArticle, jobstatus.StagePolish:
		return jobstatus.Stage(s), nil
	default:
		return "", fmt.Errorf("--phase must be one of persona|curate|outline|article|polish, got %q", s)
	}
}

// loadCheckpoint reads whatever earlier-stage artifacts startStage
// needs from reportSink and assembles them into an
// orchestrator.Checkpoint, so RunFrom never recomputes a stage the
// caller is resuming past.
func loadCheckpoint(ctx context.Context, reportSink sink.ReportSink, runID string, startStage jobstatus.Stage) (orchestrator.Checkpoint, error) {
	var cp orchestrator.Checkpoint
	if startStage == jobstatus.StagePersona {
		return cp, nil
	}

	personaBytes, err := reportSink.Get(ctx, runID, sink.PathPersonaCheckpoint)
	if err != nil {
		return cp, fmt.Errorf("load persona checkpoint: %w", err)
	}
	if err := json.Unmarshal(personaBytes, &cp.Personas); err != nil {
		return cp, fmt.Errorf("parse persona checkpoint: %w", err)
	}
	if startStage == jobstatus.StageCurate {
		return cp, nil
	}

	curateBytes, err := reportSink.Get(ctx, runID, sink.PathCurateCheckpoint)
	if err != nil {
		return cp, fmt.Errorf("load curate checkpoint: %w", err)
	}
	var conversations []domain.Conversation
	if err := json.Unmarshal(curateBytes, &conversations); err != nil {
		return cp, fmt.Errorf("parse curate checkpoint: %w", err)
	}
	cp.Table = domain.NewInformationTableFromConversations(conversations)
	if startStage == jobstatus.StageOutline {
		return cp, nil
	}

	outlineBytes, err := reportSink.Get(ctx, runID, sink.PathOutline)
	if err != nil {
		return cp, fmt.Errorf("load outline checkpoint: %w", err)
	}
	cp.Refined = domain.ParseOutline(string(outlineBytes))
	if startStage == jobstatus.StageArticle {
		return cp, nil
	}

	articleBytes, err := reportSink.Get(ctx, runID, sink.PathDraftArticle)
	if err != nil {
		return cp, fmt.Errorf("load article checkpoint: %w", err)
	}
	cp.Article = domain.ParseArticle(string(articleBytes))
	return cp, nil
}
