package emailtypes

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
)

const (
	documentArchive = "Saksdokument"
	fileStatusFinal = "F"
	documentStatusJ = "J"
	roleSender      = "Avsender"
	roleRecipient   = "Mottaker"
	caseStatusOpen  = "B"
)

// messageFiles downloads the raw message and its file attachments and returns
// them as archive files, the message first.
func messageFiles(ctx context.Context, transport mail.Transport, msg *mail.Message, emlFormat string) ([]archive.File, error) {
	var (
		raw         []byte
		attachments []mail.Attachment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := transport.Raw(gctx, msg.ID)
		if err != nil {
			return fmt.Errorf("download message: %w", err)
		}
		raw = data
		return nil
	})
	if msg.HasAttachments {
		g.Go(func() error {
			list, err := transport.Attachments(gctx, msg.ID)
			if err != nil {
				return fmt.Errorf("download attachments: %w", err)
			}
			attachments = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]archive.File, 0, len(attachments)+1)
	files = append(files, archive.File{
		Format:        emlFormat,
		Status:        fileStatusFinal,
		Title:         msg.Subject,
		Data:          raw,
		VersionFormat: archive.VersionProduction,
	})
	for _, a := range attachments {
		format, versionFormat := archive.FileExtension(a.Name)
		files = append(files, archive.File{
			Format:        format,
			Status:        fileStatusFinal,
			Title:         a.Name,
			Data:          a.Data,
			VersionFormat: versionFormat,
		})
	}
	return files, nil
}

// activeCase returns the first case whose status is in statuses.
func activeCase(cases []archive.Case, statuses ...string) *archive.Case {
	for i := range cases {
		for _, s := range statuses {
			if cases[i].Status == s {
				return &cases[i]
			}
		}
	}
	return nil
}

// categoryRecno strips the "recno:" prefix from a configured category.
func categoryRecno(category string) string {
	return strings.TrimPrefix(category, "recno:")
}

func caseHandleText(created bool) string {
	if created {
		return "Sak ble også automatisk opprettet siden robåten ikke fant en eksisterende sak."
	}
	return "Robåten fant en eksisterende sak og arkiverte dokumentet i denne."
}
