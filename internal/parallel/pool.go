package parallel

import (
	"fmt"
	"sync"
)

// Pool is one named executor: a fixed set of workers draining a task
// queue.
type Pool struct {
	name  string
	kind  string
	tasks chan func()
	wg    sync.WaitGroup
}

func newPool(cfg ExecutorConfig) *Pool {
	p := &Pool{
		name:  cfg.Name,
		kind:  cfg.Kind,
		tasks: make(chan func()),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				runTask(task)
			}
		}()
	}
	return p
}

// runTask keeps a worker alive across panicking tasks. Tasks that need to
// observe their own panic recover it themselves before it reaches here.
func runTask(task func()) {
	defer func() {
		_ = recover()
	}()
	task()
}

func (p *Pool) submit(task func()) {
	p.tasks <- task
}

func (p *Pool) shutdown() {
	close(p.tasks)
	p.wg.Wait()
}

// Set holds the running executors for one parallel configuration along
// with its routing table and the executor-name → kind lookup.
type Set struct {
	pools   map[string]*Pool
	kinds   map[string]string
	routing map[string]map[string]string
}

// NewSet starts the executors declared by cfg.
func NewSet(cfg *Config) *Set {
	s := &Set{
		pools:   make(map[string]*Pool, len(cfg.Executors)),
		kinds:   make(map[string]string, len(cfg.Executors)),
		routing: cfg.Routing,
	}
	for _, exec := range cfg.Executors {
		s.pools[exec.Name] = newPool(exec)
		s.kinds[exec.Name] = exec.Kind
	}
	return s
}

// Route returns the executor name mapped for the given action, falling
// back to the default route when unmapped.
func (s *Set) Route(plugin, action string) string {
	if actions, ok := s.routing[plugin]; ok {
		if executor, ok := actions[action]; ok {
			return executor
		}
	}
	return DefaultExecutor
}

// Kind returns the executor kind for a named executor.
func (s *Set) Kind(name string) (string, bool) {
	kind, ok := s.kinds[name]
	return kind, ok
}

// Submit queues a task on the named executor.
func (s *Set) Submit(executor string, task func()) error {
	pool, ok := s.pools[executor]
	if !ok {
		return fmt.Errorf("executor %q is not configured", executor)
	}
	pool.submit(task)
	return nil
}

// Shutdown stops accepting tasks and waits for in-flight work to finish.
func (s *Set) Shutdown() {
	for _, pool := range s.pools {
		pool.shutdown()
	}
}
