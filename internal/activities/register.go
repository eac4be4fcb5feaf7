package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.PrepareRequestActivity)
	w.RegisterActivity(a.GenerateCandidateActivity)
	w.RegisterActivity(a.SimilarityActivity)
	w.RegisterActivity(a.RecordRunActivity)
	w.RegisterActivity(a.SummarizeForReferenceActivity)
	w.RegisterActivity(a.RecordReferenceActivity)
}
