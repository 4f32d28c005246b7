package chain

import "fmt"

// SessionID numbers the fixed-length sessions the chain is partitioned into.
type SessionID uint32

// SessionBoundaryInfo maps block numbers to sessions. Every session spans
// exactly SessionPeriod blocks, and the last block of each session is always
// finalized with a justification.
type SessionBoundaryInfo struct {
	period uint32
}

func NewSessionBoundaryInfo(period uint32) (SessionBoundaryInfo, error) {
	if period == 0 {
		return SessionBoundaryInfo{}, fmt.Errorf("session period must be positive")
	}
	return SessionBoundaryInfo{period: period}, nil
}

func (s SessionBoundaryInfo) SessionPeriod() uint32 {
	return s.period
}

func (s SessionBoundaryInfo) SessionID(number uint32) SessionID {
	return SessionID(number / s.period)
}

func (s SessionBoundaryInfo) FirstBlockOfSession(session SessionID) uint32 {
	return uint32(session) * s.period
}

func (s SessionBoundaryInfo) LastBlockOfSession(session SessionID) uint32 {
	return (uint32(session)+1)*s.period - 1
}
