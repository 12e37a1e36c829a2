package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/clinicq/internal/model"
)

type cachedClinic struct {
	clinic  model.Clinic
	expires time.Time
}

// CachedClinicRepo はFindByDomainの結果をTTL付きでメモリに保持するClinicRepository。
// 見つかったクリニックのみキャッシュし、未登録ドメインは毎回委譲先に問い合わせる。
type CachedClinicRepo struct {
	next ClinicRepository
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	items map[string]cachedClinic
}

// NewCachedClinicRepo はnextをラップするCachedClinicRepoを生成する。
func NewCachedClinicRepo(next ClinicRepository, ttl time.Duration) *CachedClinicRepo {
	return &CachedClinicRepo{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cachedClinic),
	}
}

// FindByDomain はキャッシュを参照し、期限切れまたは未登録の場合は委譲先から読み込む。
func (r *CachedClinicRepo) FindByDomain(ctx context.Context, domain string) (*model.Clinic, error) {
	r.mu.Lock()
	if item, ok := r.items[domain]; ok {
		if r.now().Before(item.expires) {
			r.mu.Unlock()
			clinic := item.clinic
			return &clinic, nil
		}
		delete(r.items, domain)
	}
	r.mu.Unlock()

	clinic, err := r.next.FindByDomain(ctx, domain)
	if err != nil || clinic == nil {
		return clinic, err
	}

	r.mu.Lock()
	r.items[domain] = cachedClinic{clinic: *clinic, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return clinic, nil
}

// FindBySlug はキャッシュせずに委譲する。
func (r *CachedClinicRepo) FindBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	return r.next.FindBySlug(ctx, slug)
}

// Create は委譲先に作成し、同じドメインのキャッシュを破棄する。
func (r *CachedClinicRepo) Create(ctx context.Context, clinic *model.Clinic) error {
	if err := r.next.Create(ctx, clinic); err != nil {
		return err
	}
	r.Invalidate(clinic.Domain)
	return nil
}

// TouchLastActive は委譲先を更新し、キャッシュ中の同じクリニックにも反映する。
func (r *CachedClinicRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	if err := r.next.TouchLastActive(ctx, id, at); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for domain, item := range r.items {
		if item.clinic.ID == id {
			item.clinic.LastActiveDate = at
			r.items[domain] = item
		}
	}
	return nil
}

// Invalidate はdomainのキャッシュを破棄する。
func (r *CachedClinicRepo) Invalidate(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, domain)
}

// entryCount はキャッシュ中のエントリ数を返す。
func (r *CachedClinicRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// compile-time interface check
var _ ClinicRepository = (*CachedClinicRepo)(nil)
