// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sys/unix"
)

// unblockInterval is how often pending FIFO opens are checked.
const unblockInterval = 20 * time.Millisecond

// fifoLink is a declared FIFO and the nodes on either end. Either end
// may open it through stdin/stdout (kwire opens it) or through its
// arguments (the program does).
type fifoLink struct {
	name   string
	path   string
	writer int
	reader int

	released bool
}

func (r *run) fifoLinks() []*fifoLink {
	links := make([]*fifoLink, 0, len(r.graph.FIFOs))
	for _, name := range r.graph.FIFOs {
		link := &fifoLink{name: name, path: r.path(name), writer: -1, reader: -1}
		for index := range r.graph.Nodes {
			node := &r.graph.Nodes[index]
			for _, target := range node.Targets() {
				if target.Path == name {
					link.writer = index
				}
			}
			for _, input := range node.Inputs() {
				if input.Path == name {
					link.reader = index
				}
			}
		}
		links = append(links, link)
	}
	return links
}

func (r *run) finished(index int) bool {
	if index < 0 {
		return true
	}
	select {
	case <-r.done[index]:
		return true
	default:
		return false
	}
}

// unblock releases FIFO opens that can never rendezvous: those whose
// counterpart node has finished, and every pending open once ctx is
// cancelled. Opening a FIFO read-write without blocking counts as both
// a reader and a writer, which wakes anyone blocked in open(2); the
// woken side then sees EOF or EPIPE. Returns when finished is closed.
func (r *run) unblock(ctx context.Context, finished <-chan struct{}) {
	links := r.fifoLinks()
	if len(links) == 0 {
		<-finished
		return
	}

	ticker := r.clock.NewTicker(unblockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-finished:
			return
		case <-ticker.C:
		}

		cancelled := ctx.Err() != nil
		links = slices.DeleteFunc(links, func(link *fifoLink) bool {
			writerDone, readerDone := r.finished(link.writer), r.finished(link.reader)
			if writerDone && readerDone {
				return true
			}
			if cancelled || writerDone || readerDone {
				if poke(link.path) && !link.released {
					link.released = true
					r.logger.Debug("releasing fifo", "fifo", link.name, "cancelled", cancelled)
				}
			}
			return false
		})
	}
}

// poke briefly opens a FIFO read-write. Reports whether it could.
func poke(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}
