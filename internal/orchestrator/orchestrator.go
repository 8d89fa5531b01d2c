// Package orchestrator drives the five pipeline stages end to end,
// publishing progress and persisting artifacts as each completes.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"dartreport/internal/article"
	"dartreport/internal/config"
	"dartreport/internal/curator"
	"dartreport/internal/domain"
	"dartreport/internal/jobstatus"
	"dartreport/internal/outline"
	"dartreport/internal/persona"
	"dartreport/internal/polish"
	"dartreport/internal/sink"
)

// Orchestrator executes Stages 1 through 4b in order (§4.10), halting
// and publishing a failed or cancelled event on the first problem.
// Each stage's artifacts are written as soon as that stage completes,
// so a run that fails or is cancelled keeps the artifacts of the
// stages that finished before it; conversation_log.json and
// url_to_info.json are written only after Stage 4b returns.
type Orchestrator struct {
	personaGen *persona.Generator
	curator    *curator.Curator
	outlineGen *outline.Generator
	articleGen *article.Generator
	polisher   *polish.Polisher
	status     jobstatus.JobStatus
	sink       sink.ReportSink
	runConfig  config.RunConfig
}

// New constructs an Orchestrator from the already-wired per-stage
// components; each component's LLMClient is injected into it by value
// before reaching here, per §4.1's "Implementation note."
func New(
	personaGen *persona.Generator,
	cur *curator.Curator,
	outlineGen *outline.Generator,
	articleGen *article.Generator,
	polisher *polish.Polisher,
	status jobstatus.JobStatus,
	s sink.ReportSink,
	runConfig config.RunConfig,
) *Orchestrator {
	return &Orchestrator{
		personaGen: personaGen,
		curator:    cur,
		outlineGen: outlineGen,
		articleGen: articleGen,
		polisher:   polisher,
		status:     status,
		sink:       s,
		runConfig:  runConfig,
	}
}

// Checkpoint carries precomputed stage outputs a resumed run reuses
// instead of recomputing — the state a --phase flag loads from disk
// before calling RunFrom. Table must be set whenever startStage is
// later than StageCurate, since the final run still needs it to write
// conversation_log.json/url_to_info.json once polishing completes.
// Personas must be set when startStage is StageCurate.
type Checkpoint struct {
	Personas []domain.Persona
	Table    *domain.InformationTable
	Refined  *domain.Outline
	Article  *domain.Article
}

var stageOrder = map[jobstatus.Stage]int{
	jobstatus.StagePersona: 0,
	jobstatus.StageCurate:  1,
	jobstatus.StageOutline: 2,
	jobstatus.StageArticle: 3,
	jobstatus.StagePolish:  4,
}

// atOrAfter reports whether stage is at or after start in pipeline
// order, i.e. whether it still needs to run rather than being supplied
// by a checkpoint.
func atOrAfter(stage, start jobstatus.Stage) bool {
	return stageOrder[stage] >= stageOrder[start]
}

// Run executes the full pipeline for one report, from Stage 1 through
// Stage 4b, and returns the polished article.
func (o *Orchestrator) Run(ctx context.Context, runID, topic string) (*domain.Article, error) {
	return o.RunFrom(ctx, runID, topic, jobstatus.StagePersona, Checkpoint{})
}

// RunFrom executes the pipeline starting at startStage, reusing cp's
// precomputed outputs for every earlier stage instead of recomputing
// them. This is the resume path a killed run's --phase flag drives
// (§4.10 "CLI driver"): the teacher's cmd/archflow/main.go resumes a
// phase-gated pipeline the same way, from per-phase JSON checkpoints
// under --out rather than re-running completed work.
func (o *Orchestrator) RunFrom(ctx context.Context, runID, topic string, startStage jobstatus.Stage, cp Checkpoint) (*domain.Article, error) {
	if err := o.writeRunConfig(ctx, runID); err != nil {
		return nil, err
	}

	personas := cp.Personas
	if atOrAfter(jobstatus.StagePersona, startStage) {
		var err error
		personas, err = o.runPersonaStage(ctx, runID, topic)
		if err != nil {
			return nil, err
		}
		if err := o.writePersonaCheckpoint(ctx, runID, personas); err != nil {
			return nil, o.fail(runID, jobstatus.StagePersona, err)
		}
	} else if len(personas) == 0 && atOrAfter(jobstatus.StageCurate, startStage) {
		return nil, o.fail(runID, jobstatus.StagePersona, fmt.Errorf("orchestrator: resume from %q requires a persona checkpoint", startStage))
	}

	table := cp.Table
	if atOrAfter(jobstatus.StageCurate, startStage) {
		var err error
		table, err = o.runCurateStage(ctx, runID, topic, personas)
		if err != nil {
			return nil, err
		}
		if err := o.writeCurateCheckpoint(ctx, runID, table); err != nil {
			return nil, o.fail(runID, jobstatus.StageCurate, err)
		}
	} else if table == nil {
		return nil, o.fail(runID, jobstatus.StageCurate, fmt.Errorf("orchestrator: resume from %q requires a curate checkpoint", startStage))
	}

	refined := cp.Refined
	if atOrAfter(jobstatus.StageOutline, startStage) {
		var err error
		_, refined, err = o.runOutlineStage(ctx, runID, topic, table)
		if err != nil {
			return nil, err
		}
	} else if refined == nil {
		return nil, o.fail(runID, jobstatus.StageOutline, fmt.Errorf("orchestrator: resume from %q requires an outline checkpoint", startStage))
	}

	draftArticle := cp.Article
	if atOrAfter(jobstatus.StageArticle, startStage) {
		var err error
		draftArticle, err = o.runArticleStage(ctx, runID, topic, refined, table)
		if err != nil {
			return nil, err
		}
	} else if draftArticle == nil {
		return nil, o.fail(runID, jobstatus.StageArticle, fmt.Errorf("orchestrator: resume from %q requires an article checkpoint", startStage))
	}

	polished, err := o.runPolishStage(ctx, runID, topic, draftArticle)
	if err != nil {
		return nil, err
	}

	if err := o.writeInformationTableArtifacts(ctx, runID, table); err != nil {
		return nil, o.fail(runID, jobstatus.StagePolish, err)
	}

	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateCompleted, PercentComplete: 100, Message: "report generation complete"})
	return polished, nil
}

func (o *Orchestrator) runPersonaStage(ctx context.Context, runID, topic string) ([]domain.Persona, error) {
	if err := o.checkCancelled(ctx, runID, jobstatus.StagePersona); err != nil {
		return nil, err
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateProcessing, Stage: jobstatus.StagePersona, PercentComplete: 5, Message: "generating personas"})

	personas, err := o.personaGen.Generate(ctx, topic)
	if err != nil {
		return nil, o.fail(runID, jobstatus.StagePersona, err)
	}
	if len(personas) == 0 {
		return nil, o.fail(runID, jobstatus.StagePersona, fmt.Errorf("orchestrator: persona stage produced no personas"))
	}
	return personas, nil
}

func (o *Orchestrator) runCurateStage(ctx context.Context, runID, topic string, personas []domain.Persona) (*domain.InformationTable, error) {
	if err := o.checkCancelled(ctx, runID, jobstatus.StageCurate); err != nil {
		return nil, err
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateProcessing, Stage: jobstatus.StageCurate, PercentComplete: 20, Message: "curating knowledge dialogues"})

	table, err := o.curator.Curate(ctx, topic, personas)
	if err != nil {
		return nil, o.fail(runID, jobstatus.StageCurate, err)
	}
	return table, nil
}

func (o *Orchestrator) runOutlineStage(ctx context.Context, runID, topic string, table *domain.InformationTable) (draft, refined *domain.Outline, err error) {
	if err := o.checkCancelled(ctx, runID, jobstatus.StageOutline); err != nil {
		return nil, nil, err
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateProcessing, Stage: jobstatus.StageOutline, PercentComplete: 50, Message: "generating outline"})

	draft, refined, err = o.outlineGen.Generate(ctx, topic, table)
	if err != nil {
		return nil, nil, o.fail(runID, jobstatus.StageOutline, err)
	}
	if len(refined.TopLevel()) == 0 {
		return nil, nil, o.fail(runID, jobstatus.StageOutline, fmt.Errorf("orchestrator: outline stage produced no sections"))
	}

	if err := o.sink.Put(ctx, runID, sink.PathDraftOutline, []byte(draft.Render())); err != nil {
		return nil, nil, o.fail(runID, jobstatus.StageOutline, err)
	}
	if err := o.sink.Put(ctx, runID, sink.PathOutline, []byte(refined.Render())); err != nil {
		return nil, nil, o.fail(runID, jobstatus.StageOutline, err)
	}
	return draft, refined, nil
}

func (o *Orchestrator) runArticleStage(ctx context.Context, runID, topic string, refined *domain.Outline, table *domain.InformationTable) (*domain.Article, error) {
	if err := o.checkCancelled(ctx, runID, jobstatus.StageArticle); err != nil {
		return nil, err
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateProcessing, Stage: jobstatus.StageArticle, PercentComplete: 65, Message: "drafting sections"})

	draftArticle, err := o.articleGen.Generate(ctx, topic, refined, table)
	if err != nil {
		return nil, o.fail(runID, jobstatus.StageArticle, err)
	}
	if err := o.sink.Put(ctx, runID, sink.PathDraftArticle, []byte(draftArticle.Render())); err != nil {
		return nil, o.fail(runID, jobstatus.StageArticle, err)
	}
	return draftArticle, nil
}

func (o *Orchestrator) runPolishStage(ctx context.Context, runID, topic string, draftArticle *domain.Article) (*domain.Article, error) {
	if err := o.checkCancelled(ctx, runID, jobstatus.StagePolish); err != nil {
		return nil, err
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateProcessing, Stage: jobstatus.StagePolish, PercentComplete: 85, Message: "polishing article"})

	polished, err := o.polisher.Polish(ctx, topic, draftArticle)
	if err != nil {
		return nil, o.fail(runID, jobstatus.StagePolish, err)
	}
	if err := o.sink.Put(ctx, runID, sink.PathPolishedArticle, []byte(polished.Render())); err != nil {
		return nil, o.fail(runID, jobstatus.StagePolish, err)
	}
	return polished, nil
}

func (o *Orchestrator) writeRunConfig(ctx context.Context, runID string) error {
	b, err := json.MarshalIndent(o.runConfig, "", "  ")
	if err != nil {
		return err
	}
	return o.sink.Put(ctx, runID, sink.PathRunConfig, b)
}

// writePersonaCheckpoint persists Stage 1's output so a killed run
// resumed with --phase curate (or later) can skip persona generation.
func (o *Orchestrator) writePersonaCheckpoint(ctx context.Context, runID string, personas []domain.Persona) error {
	b, err := json.Marshal(personas)
	if err != nil {
		return err
	}
	return o.sink.Put(ctx, runID, sink.PathPersonaCheckpoint, b)
}

// writeCurateCheckpoint persists Stage 2's conversations, which is
// enough to rebuild the whole InformationTable
// (domain.NewInformationTableFromConversations) without re-running any
// dialogue or retrieval.
func (o *Orchestrator) writeCurateCheckpoint(ctx context.Context, runID string, table *domain.InformationTable) error {
	b, err := json.Marshal(table.Conversations)
	if err != nil {
		return err
	}
	return o.sink.Put(ctx, runID, sink.PathCurateCheckpoint, b)
}

func (o *Orchestrator) fail(runID string, stage jobstatus.Stage, err error) error {
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateFailed, Stage: stage, Message: err.Error()})
	return err
}

// checkCancelled publishes a cancelled event and returns ctx's error
// if the context was cancelled before the next stage could start
// (§5: "pipeline halts at next stage boundary").
func (o *Orchestrator) checkCancelled(ctx context.Context, runID string, stage jobstatus.Stage) error {
	if ctx.Err() == nil {
		return nil
	}
	o.status.Publish(runID, jobstatus.Event{RunID: runID, State: jobstatus.StateCancelled, Stage: stage, Message: ctx.Err().Error()})
	return ctx.Err()
}
