package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
)

// TutorID owns the demo circles
const TutorID = "seed-tutor"

type seedDoc struct {
	collection string
	id         string
	value      any
}

func demoDocuments(now time.Time) []seedDoc {
	created := models.FormatTimestamp(now)
	tutor := models.User{
		ID:        TutorID,
		Name:      "Giulia Russo",
		Email:     "giulia.russo@unikorestudent.it",
		Avatar:    "https://ui-avatars.com/api/?name=Giulia+Russo",
		Role:      models.RoleTutor,
		Course:    "Ingegneria Informatica",
		Year:      "3° Anno",
		Bio:       "Tutor di Analisi e Basi di Dati.",
		Karma:     120,
		Interests: []string{"Matematica", "Database"},

		Friends:         []string{},
		PendingRequests: []string{},
		Notifications:   []models.Notification{},
	}

	circles := []models.Circle{
		{
			ID: "demo-analisi", Name: "Analisi Matematica I", Subject: "Matematica",
			ExamDate: now.AddDate(0, 1, 0).Format("2006-01-02"), Category: "Esami",
			Description: "Esercizi su limiti, derivate e integrali.",
		},
		{
			ID: "demo-fisica", Name: "Fisica Generale", Subject: "Fisica",
			Category:    models.DefaultCircleCategory,
			Description: "Meccanica e termodinamica, ripasso settimanale.",
		},
		{
			ID: "demo-basi-dati", Name: "Basi di Dati", Subject: "Informatica",
			Category:    "Progetti",
			Description: "SQL, normalizzazione e progetto d'esame.",
		},
	}

	docs := []seedDoc{{models.CollectionUsers, tutor.ID, tutor}}
	for _, c := range circles {
		c.CreatorID = TutorID
		c.Members = []string{TutorID}
		c.PendingMembers = []string{}
		c.Chat = []models.ChatMessage{}
		c.CreatedAt = created
		docs = append(docs, seedDoc{models.CollectionCircles, c.ID, c})
	}

	docs = append(docs,
		seedDoc{models.CollectionAnnouncements, "demo-welcome", models.Announcement{
			Title: "Benvenuti!", Content: "Presentatevi in chat e condividete i vostri appunti.",
			AuthorID: TutorID, CircleID: "demo-analisi", Timestamp: created, Priority: models.PriorityNormal,
		}},
		seedDoc{models.CollectionNoteRequests, "demo-request", models.NoteRequest{
			CircleID: "demo-basi-dati", AuthorID: TutorID, AuthorName: tutor.Name, AuthorAvatar: tutor.Avatar,
			Topic: "Forme normali", Description: "Qualcuno ha esempi svolti di 3NF e BCNF?",
			Timestamp: created, Status: models.RequestOpen,
		}},
	)
	return docs
}

// CreateDefaultData writes the demo circles and their owner if they are
// missing. Existing documents are left untouched.
func CreateDefaultData(ctx context.Context, store gateway.DocumentStore, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating demo data...")
	var finalErr error
	created := 0

	for _, doc := range demoDocuments(time.Now()) {
		_, err := store.GetOne(ctx, doc.collection, doc.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, gateway.ErrNotFound) {
			finalErr = errors.Join(finalErr, fmt.Errorf("check %s/%s: %w", doc.collection, doc.id, err))
			continue
		}

		data, err := gateway.Encode(doc.value)
		if err != nil {
			finalErr = errors.Join(finalErr, err)
			continue
		}
		delete(data, "id")
		if err := store.SetAt(ctx, doc.collection, doc.id, data); err != nil {
			lgr.Error().Err(err).Str("collection", doc.collection).Str("id", doc.id).Msg("Error creating demo document")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		created++
	}

	lgr.Info().Int("created", created).Msg("Demo data ready")
	return finalErr
}
