package assessment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type AuditLogRepo interface {
	Record(dbc dbctx.Context, actorID uuid.UUID, action, entity, entityID string, meta map[string]any) error
	ListByEntity(dbc dbctx.Context, entity, entityID string) ([]*types.AuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{
		db:  db,
		log: baseLog.With("repo", "AuditLogRepo"),
	}
}

func (r *auditLogRepo) Record(dbc dbctx.Context, actorID uuid.UUID, action, entity, entityID string, meta map[string]any) error {
	row := &types.AuditLog{
		ID:          uuid.New(),
		ActorUserID: actorID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		CreatedAt:   time.Now().UTC(),
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		row.Meta = datatypes.JSON(b)
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *auditLogRepo) ListByEntity(dbc dbctx.Context, entity, entityID string) ([]*types.AuditLog, error) {
	var out []*types.AuditLog
	if err := dbc.DB(r.db).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
