// queue-watcher is a terminal consumer of the realtime layer: it joins
// an event's waiting line, follows the queue and seat feeds, drives the
// purchase flow state machine and releases its slot through the exit
// guard on Ctrl-C. Useful against the stub backend or the real one.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-storefront/api"
	"ticket-storefront/guard"
	"ticket-storefront/queue"
	"ticket-storefront/realtime"
	"ticket-storefront/seat"
	"ticket-storefront/shared"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "backend base URL")
	wsURL := flag.String("ws-url", "ws://localhost:8080/ws", "backend websocket URL")
	eventID := flag.String("event", "concert-1", "event id to queue for")
	token := flag.String("token", "", "bearer token (stub backend: doubles as user id)")
	userID := flag.String("user", "", "user id (defaults to the token)")
	admit := flag.Bool("admit", false, "ask the backend to process the queue up to us (dev)")
	flag.Parse()

	if *token == "" {
		log.Fatal("a -token is required")
	}
	user := *userID
	if user == "" {
		user = *token
	}

	tokenFn := func() string { return *token }
	client := api.NewClient(*baseURL, api.TokenFunc(tokenFn))
	service := realtime.NewService(*wsURL, realtime.TokenFunc(tokenFn))
	defer service.Teardown()

	redirected := make(chan queue.RedirectTarget, 1)
	machine := queue.NewMachine(func(target queue.RedirectTarget) {
		select {
		case redirected <- target:
		default:
		}
	}, func(state queue.FlowState) {
		log.Printf("flow state: %s", state)
	})

	exitGuard := guard.New(client, *eventID, guard.Hooks{
		OnRequeued: func(previous, next int) {
			log.Printf("returned to back of queue: rank %d -> %d", previous, next)
		},
	})

	queueCoord := queue.NewCoordinator(service.Conn(), *eventID, user)
	seatCoord := seat.NewCoordinator(service.Conn(), *eventID, func(err error) {
		// seat feed errors are fatal for the seat feature only
		log.Printf("seat feed down, live availability disabled: %v", err)
	})

	ctx := context.Background()
	status, err := client.QueueStatus(ctx, *eventID)
	if err != nil {
		log.Fatalf("queue status fetch failed: %v", err)
	}
	log.Printf("joined queue for %s: rank %d, %d ahead, lifecycle %s",
		*eventID, status.Rank, status.WaitingAhead, status.LifecycleState)
	queueCoord.ApplySnapshot(status)
	machine.Init(status)
	defer machine.Stop()

	queueCoord.Start()
	seatCoord.Start()
	defer queueCoord.Stop()
	defer seatCoord.Stop()

	if machine.State() == queue.StateReady {
		exitGuard.Activate()
	}

	if *admit {
		if err := client.ProcessUntilMe(ctx, *eventID); err != nil {
			log.Printf("process-until-me failed: %v", err)
		} else {
			machine.ProcessedUntilMe()
			exitGuard.Activate()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	poll := time.NewTicker(5 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-queueCoord.Updates():
			if ev := queueCoord.PersonalEvent(); ev != nil {
				log.Printf("personal event: %s (%s)", ev.Kind, ev.Message)
				machine.HandlePersonalEvent(*ev)
				queueCoord.ClearPersonalEvent()
				if machine.State() == queue.StateReady {
					exitGuard.Activate()
				}
			}
			if pos, ok := queueCoord.Position(); ok {
				wait, _ := queueCoord.EstimatedWait()
				progress, _ := queueCoord.Progress()
				log.Printf("queue position %d, ~%d min, %.0f%%", pos, wait, progress)
			}

		case <-seatCoord.Updates():
			changes := seatCoord.Changes()
			if len(changes) > 0 {
				latest := changes[0]
				log.Printf("seat %s is now %s (%d recent changes)",
					latest.SeatCode, latest.CurrentStatus, len(changes))
			}

		case <-poll.C:
			status, err := client.QueueStatus(ctx, *eventID)
			if err != nil {
				log.Printf("status poll failed: %v", err)
				continue
			}
			queueCoord.ApplySnapshot(status)
			machine.HandleStatusPoll(status)
			if machine.State() == queue.StateReady {
				exitGuard.Activate()
				log.Printf("purchase window: %ds remaining", machine.Countdown().Remaining())
			}

		case target := <-redirected:
			log.Printf("redirected to %s, exiting", target)
			return

		case <-sigChan:
			log.Println("interrupted, releasing queue slot...")
			exitCtx, cancel := context.WithTimeout(context.Background(), shared.RESTTimeout)
			if exitGuard.InterceptNavigation("/events") {
				if err := exitGuard.ConfirmExit(exitCtx); err != nil {
					log.Printf("move-to-back failed: %v", err)
				}
			}
			cancel()
			return
		}
	}
}
