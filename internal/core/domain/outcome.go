package domain

// Outcome is the terminal verdict of one upload attempt.
type Outcome struct {
	Success  bool
	CargueID string
	Reason   string
}

func SuccessOutcome(cargueID string) Outcome {
	return Outcome{Success: true, CargueID: cargueID}
}

func FailureOutcome(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Classify derives the verdict from the final load status snapshot. The rule
// is deliberately strict: any message on the first file result, whatever its
// tipo, marks the upload as failed. All messages observed in practice are
// failures; the rule lives here alone so it can change without touching the
// pipeline.
func Classify(status *LoadStatus) Outcome {
	file, ok := status.FirstFile()
	if !ok {
		return FailureOutcome("no file result returned")
	}
	if file.Clean() {
		return SuccessOutcome(status.CargueID())
	}
	// Rejected uploads still have a cargue on the portal side; the report
	// needs its id next to the failure reason.
	return Outcome{CargueID: status.CargueID(), Reason: file.FailureReason()}
}
