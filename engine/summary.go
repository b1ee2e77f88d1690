package engine

// Summarize aggregates records into per-type counts, the mean similarity and
// the subset of records scoring below threshold (in emission order). Pure:
// the same records always produce the same summary. Empty input yields a
// zeroed summary.
func Summarize(records []ChangeRecord, threshold float64) Summary {
	s := Summary{TotalCount: len(records)}

	var sum float64
	for _, rec := range records {
		switch rec.Type {
		case Added:
			s.AddedCount++
		case Removed:
			s.RemovedCount++
		case Modified:
			s.ModifiedCount++
		case Unchanged:
			s.UnchangedCount++
		}
		sum += rec.Similarity
		if rec.Similarity < threshold {
			s.BelowThreshold = append(s.BelowThreshold, rec)
		}
	}

	if s.TotalCount > 0 {
		s.AverageSimilarity = sum / float64(s.TotalCount)
	}
	return s
}
