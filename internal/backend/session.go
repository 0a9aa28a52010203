package backend

import "sync"

// clientSession is the per-connection state the backend tracks for its
// one connected client (spec §4.2: "the backend serves its one
// connected client, the middleware"). Concurrency is single-threaded
// cooperative per spec §5, but the mutex keeps a stray concurrent Status
// poll from racing a live query.
type clientSession struct {
	mu sync.Mutex

	workingDir string
	verbosity  int
	provider   string
}

func newClientSession() *clientSession {
	return &clientSession{verbosity: 1}
}

func (s *clientSession) setWorkingDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingDir = dir
}

func (s *clientSession) getWorkingDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingDir
}

func (s *clientSession) setVerbosity(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbosity = level
}

func (s *clientSession) setProvider(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = name
}
