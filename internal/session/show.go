package session

// Summary is the short description printed by `trace session show`.
type Summary struct {
	ID             string
	Title          string
	Status         Status
	StartTime      string
	EndTime        string
	DurationMS     *int64
	UpdatedAt      string
	MediaCount     int
	MarkerCount    int
	VoiceNoteCount int
	SegmentCount   int
	DigestPath     string
}

// Show summarizes the session. Counts are of folded records.
func (d *Dir) Show() (Summary, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return Summary{}, err
	}
	doc := snap.Doc
	s := Summary{
		ID:             doc.ID,
		Title:          doc.Title,
		Status:         doc.Status,
		StartTime:      doc.StartTime,
		EndTime:        doc.EndTime,
		DurationMS:     doc.DurationMS,
		UpdatedAt:      doc.UpdatedAt,
		MediaCount:     len(doc.Media),
		MarkerCount:    len(snap.Markers),
		VoiceNoteCount: len(snap.VoiceNotes),
		SegmentCount:   len(snap.Transcript),
	}
	if doc.DigestPath != nil {
		s.DigestPath = *doc.DigestPath
	}
	return s, nil
}
