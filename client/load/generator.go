// Package load drives many concurrent submissions against the message
// service and reports how it copes.
package load

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

var predefinedMessages = []string{
	"Hello world!", "How are you?", "WebSocket is cool", "Distributed systems are hard",
	"Anyone here?", "Chat application", "Testing high load", "Another message",
	"Design patterns", "Latency check", "Throughput test", "Keep alive",
	"Good morning", "Good night", "See you later", "I will be back",
	"Concurrency", "Parallelism", "Scalability", "Reliability", "Availability",
	"Consistency", "Little's Law", "Queuing theory", "Load balancing", "Failover",
	"Replication", "Sharding", "Caching", "Message queue",
}

// Generator produces message bodies for the worker pool.
type Generator struct {
	TotalMessages int
	Output        chan string
	rnd           *rand.Rand
}

func NewGenerator(totalMessages int, bufferSize int) *Generator {
	return &Generator{
		TotalMessages: totalMessages,
		Output:        make(chan string, bufferSize),
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run emits TotalMessages bodies, or fewer if ctx ends first, then closes
// Output.
func (g *Generator) Run(ctx context.Context) {
	defer close(g.Output)

	for i := 0; i < g.TotalMessages; i++ {
		body := fmt.Sprintf("%s #%d", predefinedMessages[g.rnd.Intn(len(predefinedMessages))], i+1)
		select {
		case g.Output <- body:
		case <-ctx.Done():
			return
		}
	}
}
