// Booking race simulator: hammers a single doctor's schedule with
// concurrent booking attempts and verifies that every slot is won by
// exactly one request, with all other attempts rejected as conflicts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/notify"
	redisclient "github.com/careconnect/scheduling-service/internal/redis"
	"github.com/careconnect/scheduling-service/internal/scheduling"
)

func main() {
	workers := flag.Int("workers", 50, "concurrent booking attempts per slot")
	slotCount := flag.Int("slots", 8, "number of slots to fight over")
	flag.Parse()

	logger := zap.NewNop()
	repo := scheduling.NewMemoryRepository()
	loc := time.Local

	doctor := scheduling.Doctor{
		ID:           uuid.New(),
		Name:         "Dr. Simulated",
		WorkingStart: "09:00",
		WorkingEnd:   "17:00",
		SlotMinutes:  60,
	}
	repo.PutDoctor(doctor)

	patients := make([]scheduling.Patient, *workers)
	for i := range patients {
		patients[i] = scheduling.Patient{ID: uuid.New(), Name: fmt.Sprintf("patient-%d", i)}
		repo.PutPatient(patients[i])
	}

	resolver := scheduling.NewAvailabilityResolver(repo, loc)
	schedules := scheduling.NewScheduleService(repo, loc, 12, logger)
	coordinator := scheduling.NewBookingCoordinator(
		repo, redisclient.NopLocker{}, resolver, notify.Noop{}, loc, 5*time.Second, logger,
	)

	ctx := context.Background()
	date := scheduling.FormatDate(time.Now().AddDate(0, 0, 1))

	created, err := schedules.Generate(ctx, scheduling.GenerateRequest{
		DoctorID: doctor.ID,
		Dates:    []string{date},
	})
	if err != nil {
		log.Fatalf("generate schedule: %v", err)
	}
	if len(created) < *slotCount {
		*slotCount = len(created)
	}

	var successes, conflicts, failures atomic.Int64
	start := time.Now()

	var wg sync.WaitGroup
	for s := 0; s < *slotCount; s++ {
		slot := created[s].TimeSlot
		for w := 0; w < *workers; w++ {
			wg.Add(1)
			go func(patient scheduling.Patient, slot string) {
				defer wg.Done()
				_, err := coordinator.Book(ctx, scheduling.BookRequest{
					DoctorID:  doctor.ID,
					PatientID: patient.ID,
					Date:      date,
					TimeSlot:  slot,
				})
				var conflict *scheduling.ConflictError
				switch {
				case err == nil:
					successes.Add(1)
				case errors.As(err, &conflict):
					conflicts.Add(1)
				default:
					failures.Add(1)
					log.Printf("unexpected error: %v", err)
				}
			}(patients[w], slot)
		}
	}
	wg.Wait()

	took := time.Since(start)
	attempts := int64(*slotCount) * int64(*workers)

	fmt.Printf("attempts=%d successes=%d conflicts=%d failures=%d took=%s\n",
		attempts, successes.Load(), conflicts.Load(), failures.Load(), took)

	if successes.Load() != int64(*slotCount) || failures.Load() != 0 {
		log.Fatalf("invariant violated: expected exactly %d winners, got %d (failures=%d)",
			*slotCount, successes.Load(), failures.Load())
	}
	fmt.Println("invariant held: exactly one winner per slot")
}
