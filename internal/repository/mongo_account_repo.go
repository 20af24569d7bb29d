package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fathima-sithara/placement-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	emailIndex      = "uniq_email"
	rollNumberIndex = "uniq_student_roll_number"
	reviewIndex     = "approval_status_role"
)

type MongoAccountRepo struct {
	col *mongo.Collection
}

var _ AccountRepository = (*MongoAccountRepo)(nil)

func NewMongoAccountRepo(db *mongo.Database, collection string) *MongoAccountRepo {
	return &MongoAccountRepo{col: db.Collection(collection)}
}

// EnsureIndexes creates the uniqueness constraints the lifecycle relies on.
func (r *MongoAccountRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "student.roll_number", Value: 1}},
			Options: options.Index().SetName(rollNumberIndex).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "approval_status", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName(reviewIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

func (r *MongoAccountRepo) Create(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = models.NormalizeEmail(a.Email)
	_, err := r.col.InsertOne(ctx, a)
	return classifyWriteError(err)
}

func (r *MongoAccountRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *MongoAccountRepo) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	err := r.col.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MongoAccountRepo) List(ctx context.Context, f ListFilter) ([]*models.Account, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["approval_status"] = f.Status
	}
	if len(f.Roles) > 0 {
		filter["role"] = bson.M{"$in": f.Roles}
	}
	if inst := strings.TrimSpace(f.Institute); inst != "" {
		filter["student.institute"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(inst) + "$", Options: "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Account, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoAccountRepo) SetVerificationOTP(ctx context.Context, id primitive.ObjectID, otp models.OneTimeCode) error {
	return r.updateExisting(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"email_verification_otp": otp, "updated_at": time.Now().UTC()},
	})
}

func (r *MongoAccountRepo) ConsumeVerificationOTP(ctx context.Context, id primitive.ObjectID, codeHash string, now time.Time) (*models.Account, error) {
	filter := bson.M{
		"_id":                               id,
		"email_verification_otp.code_hash":  codeHash,
		"email_verification_otp.expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"is_verified": true, "updated_at": now},
		"$unset": bson.M{"email_verification_otp": ""},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *MongoAccountRepo) ClearVerificationOTP(ctx context.Context, id primitive.ObjectID, codeHash string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "email_verification_otp.code_hash": codeHash},
		bson.M{"$unset": bson.M{"email_verification_otp": ""}},
	)
	return err
}

func (r *MongoAccountRepo) RecordVerificationFailure(ctx context.Context, id primitive.ObjectID, codeHash string) (int, error) {
	a, err := r.findOneAndUpdate(ctx,
		bson.M{"_id": id, "email_verification_otp.code_hash": codeHash},
		bson.M{"$inc": bson.M{"email_verification_otp.attempts": 1}},
	)
	if err != nil {
		return 0, err
	}
	if a.EmailVerificationOTP == nil {
		return 0, ErrConditionFailed
	}
	return a.EmailVerificationOTP.Attempts, nil
}

func (r *MongoAccountRepo) SetResetToken(ctx context.Context, id primitive.ObjectID, token models.ResetToken) error {
	return r.updateExisting(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_reset_token": token, "updated_at": time.Now().UTC()},
	})
}

func (r *MongoAccountRepo) ConsumeResetToken(ctx context.Context, id primitive.ObjectID, tokenHash, passwordHash string, now time.Time) error {
	filter := bson.M{
		"_id":                             id,
		"password_reset_token.token_hash": tokenHash,
		"password_reset_token.expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash":       passwordHash,
			"password_changed_at": now,
			"updated_at":          now,
		},
		"$unset": bson.M{"password_reset_token": ""},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (r *MongoAccountRepo) ClearResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "password_reset_token.token_hash": tokenHash},
		bson.M{"$unset": bson.M{"password_reset_token": ""}},
	)
	return err
}

func (r *MongoAccountRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error {
	return r.updateExisting(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"password_hash":       passwordHash,
			"password_changed_at": now,
			"updated_at":          now,
		},
		"$unset": bson.M{"password_reset_token": ""},
	})
}

func (r *MongoAccountRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string, profile models.ProfileInput, now time.Time) (*models.Account, error) {
	set := bson.M{"updated_at": now}
	if name = strings.TrimSpace(name); name != "" {
		set["name"] = name
	}
	switch {
	case profile.Student != nil:
		set["student"] = profile.Student
	case profile.Company != nil:
		set["company"] = profile.Company
	case profile.TPO != nil:
		set["tpo"] = profile.TPO
	}
	a, err := r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if errors.Is(err, ErrConditionFailed) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

func (r *MongoAccountRepo) TouchLastLogin(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": now}})
	return err
}

// Transition applies a decision only if the account is still Pending, so concurrent
// approve and reject calls cannot both succeed.
func (r *MongoAccountRepo) Transition(ctx context.Context, id primitive.ObjectID, d models.Decision) (*models.Account, error) {
	filter := bson.M{
		"_id":             id,
		"approval_status": models.ApprovalPending,
		"role":            bson.M{"$ne": models.RoleSuperadmin},
	}
	if d.RequireVerified {
		filter["is_verified"] = true
	}

	set := bson.M{"approval_status": d.To, "updated_at": d.At}
	switch d.To {
	case models.ApprovalApproved:
		set["approved_at"] = d.At
		set["approved_by"] = d.ReviewerID
	case models.ApprovalRejected:
		set["rejected_at"] = d.At
		set["rejected_by"] = d.ReviewerID
		set["rejection_reason"] = d.Reason
	default:
		return nil, fmt.Errorf("%w: target %q", models.ErrInvalidTransition, d.To)
	}
	return r.findOneAndUpdate(ctx, filter, bson.M{"$set": set})
}

func (r *MongoAccountRepo) PurgeExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	otps, err := r.col.UpdateMany(ctx,
		bson.M{"email_verification_otp.expires_at": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"email_verification_otp": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("purge verification codes: %w", err)
	}
	tokens, err := r.col.UpdateMany(ctx,
		bson.M{"password_reset_token.expires_at": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"password_reset_token": ""}},
	)
	if err != nil {
		return otps.ModifiedCount, fmt.Errorf("purge reset tokens: %w", err)
	}
	return otps.ModifiedCount + tokens.ModifiedCount, nil
}

func (r *MongoAccountRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Account
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConditionFailed
	}
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return &a, nil
}

func (r *MongoAccountRepo) updateExisting(ctx context.Context, filter, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return classifyWriteError(err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// classifyWriteError maps duplicate-key errors (code 11000) to the violated constraint.
func classifyWriteError(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, rollNumberIndex), strings.Contains(msg, "student.roll_number"):
		return fmt.Errorf("%w: %v", ErrDuplicateRollNumber, err)
	default:
		return fmt.Errorf("%w: %v", ErrDuplicateEmail, err)
	}
}
