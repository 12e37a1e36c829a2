package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/clinicq/internal/model"
)

// clinicCollectionName はクリニックを格納するコレクション名。
const clinicCollectionName = "clinics"

// clinicDocument はclinicsコレクションのドキュメント形式。
// サービスが書き込む_idは常にUUID文字列。
type clinicDocument struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Domain         string    `bson:"domain"`
	Slug           *string   `bson:"slug,omitempty"`
	Plan           string    `bson:"plan"`
	LastActiveDate time.Time `bson:"lastActiveDate"`
	CreatedAt      time.Time `bson:"createdAt"`
}

// storedClinicDocument は読み出し用の形式。
// サービス外で作られたドキュメントの_idはObjectIDの場合がある。
type storedClinicDocument struct {
	ID             bson.RawValue `bson:"_id"`
	Name           string        `bson:"name"`
	Domain         string        `bson:"domain"`
	Slug           *string       `bson:"slug,omitempty"`
	Plan           string        `bson:"plan"`
	LastActiveDate time.Time     `bson:"lastActiveDate"`
	CreatedAt      time.Time     `bson:"createdAt"`
}

func (d *storedClinicDocument) toModel() (*model.Clinic, error) {
	id, err := documentID(d.ID)
	if err != nil {
		return nil, err
	}
	return &model.Clinic{
		ID:             id,
		Name:           d.Name,
		Domain:         d.Domain,
		Slug:           d.Slug,
		Plan:           d.Plan,
		LastActiveDate: d.LastActiveDate,
		CreatedAt:      d.CreatedAt,
	}, nil
}

// documentID は_idを文字列のIDに変換する。ObjectIDは24桁の16進表記になる。
func documentID(raw bson.RawValue) (string, error) {
	switch raw.Type {
	case bson.TypeString:
		return raw.StringValue(), nil
	case bson.TypeObjectID:
		return raw.ObjectID().Hex(), nil
	default:
		return "", fmt.Errorf("unsupported clinic _id type: %s", raw.Type)
	}
}

// idFilter はIDに一致する_idのフィルタを返す。
// ObjectIDの16進表記として解釈できるIDは、文字列とObjectIDのどちらの_idにも一致させる。
func idFilter(id string) bson.D {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.D{{Key: "_id", Value: id}}
	}
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{id, oid}}}}}
}

// MongoClinicRepo はMongoDBを使用したクリニックリポジトリ。
// STORE_BACKEND=mongo のときにPostgresClinicRepoの代わりに使われる。
type MongoClinicRepo struct {
	coll *mongo.Collection
}

// NewMongoClinicRepo はdbのclinicsコレクションを使うMongoClinicRepoを生成する。
func NewMongoClinicRepo(db *mongo.Database) *MongoClinicRepo {
	return &MongoClinicRepo{coll: db.Collection(clinicCollectionName)}
}

// EnsureIndexes はdomainとslugの一意インデックスを作成する。
// slugは未設定のドキュメントが多いため部分インデックスにする。
func (r *MongoClinicRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain", Value: 1}},
			Options: options.Index().SetName("clinics_domain_key").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().
				SetName("clinics_slug_key").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "slug", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create clinic indexes: %w", err)
	}
	return nil
}

// FindByDomain はdomainでクリニックを取得する。見つからない場合はnilを返す。
func (r *MongoClinicRepo) FindByDomain(ctx context.Context, domain string) (*model.Clinic, error) {
	clinic, err := r.findOne(ctx, bson.D{{Key: "domain", Value: domain}})
	if err != nil {
		return nil, fmt.Errorf("failed to find clinic by domain: %w", err)
	}
	return clinic, nil
}

// FindBySlug はslugでクリニックを取得する。見つからない場合はnilを返す。
func (r *MongoClinicRepo) FindBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	clinic, err := r.findOne(ctx, bson.D{{Key: "slug", Value: slug}})
	if err != nil {
		return nil, fmt.Errorf("failed to find clinic by slug: %w", err)
	}
	return clinic, nil
}

func (r *MongoClinicRepo) findOne(ctx context.Context, filter bson.D) (*model.Clinic, error) {
	var doc storedClinicDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

// Create はクリニックを作成する。
func (r *MongoClinicRepo) Create(ctx context.Context, clinic *model.Clinic) error {
	if clinic.ID == "" {
		clinic.ID = uuid.New().String()
	}
	if clinic.Plan == "" {
		clinic.Plan = model.DefaultPlan
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if clinic.LastActiveDate.IsZero() {
		clinic.LastActiveDate = now
	}
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = now
	}

	_, err := r.coll.InsertOne(ctx, clinicDocument{
		ID:             clinic.ID,
		Name:           clinic.Name,
		Domain:         clinic.Domain,
		Slug:           clinic.Slug,
		Plan:           clinic.Plan,
		LastActiveDate: clinic.LastActiveDate,
		CreatedAt:      clinic.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateDomain
	}
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

// TouchLastActive はlastActiveDateを更新する。
func (r *MongoClinicRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, idFilter(id), bson.D{{Key: "$set", Value: bson.D{{Key: "lastActiveDate", Value: at}}}})
	if err != nil {
		return fmt.Errorf("failed to touch clinic last_active_date: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ClinicRepository = (*MongoClinicRepo)(nil)
