package main

import (
	"context"
	"encoding/json"
	"log"

	"dartreport/internal/llm"
	"dartreport/internal/sink"
)

// sinkCallRecorder bridges llm.CallRecorder to the run's
// llm_call_history.jsonl artifact, one JSON line per completed LM
// call across every role.
type sinkCallRecorder struct {
	sink  sink.ReportSink
	runID string
}

var _ llm.CallRecorder = (*sinkCallRecorder)(nil)

func (r *sinkCallRecorder) Record(rec llm.CallRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		log.Printf("marshal call record for role %s: %v", rec.Role, err)
		return
	}
	if err := r.sink.AppendLine(context.Background(), r.runID, sink.PathLLMCallHistory, line); err != nil {
		log.Printf("append call history for role %s: %v", rec.Role, err)
	}
}
