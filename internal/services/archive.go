package services

import (
	"context"

	"farm-console/internal/models"
	"farm-console/internal/notification"
)

type alertArchive interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	MarkAlertRead(ctx context.Context, id models.ID) (bool, error)
}

// archiveSink records new alerts and flags read ones. A read alert the
// archive has never seen is stored whole.
func archiveSink(archive alertArchive) notification.Sink {
	return notification.Sink{
		Name: "archive",
		Send: func(ctx context.Context, alert models.Alert) error {
			if alert.Read {
				found, err := archive.MarkAlertRead(ctx, alert.ID)
				if err != nil || found {
					return err
				}
			}
			return archive.CreateAlert(ctx, alert)
		},
	}
}
