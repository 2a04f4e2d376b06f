package core

import "time"

// maxHistory is the number of batch reports kept per session.
const maxHistory = 20

// record appends a batch report to the session history, dropping the
// oldest entry when full. The caller holds sess.mu.
func (sess *session) record(report ApplyReport) {
	if len(sess.history) == maxHistory {
		copy(sess.history, sess.history[1:])
		sess.history = sess.history[:maxHistory-1]
	}
	sess.history = append(sess.history, report)
}

// History returns the reports of the batches applied on a session, oldest
// first.
func (s *Service) History(id string) ([]ApplyReport, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	out := make([]ApplyReport, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

func stamp(report ApplyReport, at time.Time) ApplyReport {
	report.At = at
	return report
}
