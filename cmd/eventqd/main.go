// eventqd runs a durable event queue behind an HTTP front end, with an
// optional shipper that forwards queued events to Kafka.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"eventq/api/httpserver"
	"eventq/infra/kafka"
	"eventq/jobs/shipper"
	"eventq/queue"
)

func main() {
	var (
		dir          = flag.String("dir", "./eventq_data", "storage directory")
		name         = flag.String("name", "events", "logical queue name")
		addr         = flag.String("addr", ":8080", "HTTP listen address")
		brokers      = flag.String("brokers", "", "comma-separated Kafka brokers (empty disables shipping)")
		topic        = flag.String("topic", "events", "Kafka topic to ship to")
		kafkaClient  = flag.String("kafka-client", "kafka-go", "Kafka client library: kafka-go or sarama")
		shipInterval = flag.Duration("ship-interval", 250*time.Millisecond, "shipper drain interval")
	)
	flag.Parse()

	// ---------------- Queue ----------------

	q, err := queue.Open[[]byte](*dir, *name, queue.Bytes{})
	if err != nil {
		log.Fatalf("queue init failed: %v", err)
	}
	defer q.Close()

	var mu sync.Mutex

	// ---------------- Background Jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *brokers != "" {
		var sink shipper.Sink
		switch *kafkaClient {
		case "kafka-go":
			sink = kafka.NewProducer(strings.Split(*brokers, ","), *topic)
		case "sarama":
			sink, err = kafka.NewSyncProducer(strings.Split(*brokers, ","), *topic)
			if err != nil {
				log.Fatalf("sarama producer init failed: %v", err)
			}
		default:
			log.Fatalf("unknown kafka client %q", *kafkaClient)
		}
		sh := shipper.New(q, &mu, sink, *shipInterval)
		defer sh.Close()
		go sh.Run(ctx)
	}

	// ---------------- HTTP ----------------

	srv := httpserver.New(q, &mu)
	pending := q.Len()
	go func() {
		log.Printf("eventqd listening on %s (queue %q, %d pending)", *addr, *name, pending)
		if err := srv.Start(*addr); err != nil {
			log.Printf("http server exited: %v", err)
		}
	}()

	// ---------------- Shutdown ----------------

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
