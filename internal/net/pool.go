package net

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds how many accepted connections can queue for a free
// worker before Server.Run's accept loop blocks, mirroring the teacher's
// internal/worker.go TASK_CHAN_SIZE.
const taskChanSize = 100

// WorkerFunc processes one task (here, one net.Conn) until it is done or
// the tomb is dying.
type WorkerFunc = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines pulling off one shared
// task queue, the same fan-out shape the teacher's internal/worker.go
// used for connection handling — rebuilt here since the teacher's own
// copy imports a package that was never part of its module.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{n: size, tasks: make(chan any, taskChanSize)}
}

func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup keeps exactly n workers alive under t until t is dying, restarting
// any worker that returns (a finished connection, not a failure).
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	log.Info().Int("workers", p.n).Msg("starting worker pool")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.n {
				t.Go(func() error {
					err := p.worker(t, work)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb, work WorkerFunc) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker task failed")
		}
	}
	return nil
}
