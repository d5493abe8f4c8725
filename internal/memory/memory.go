package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"umkm/internal/core"
	"umkm/internal/ports"
)

type account struct {
	profile core.Profile
	hash    []byte
}

// Store keeps every record in process memory. Records are scoped by the
// UMKM id of the calling principal.
type Store struct {
	mu          sync.Mutex
	tokens      ports.TokenIssuer
	autoApprove bool
	seq         int

	cats     []core.Category
	accounts map[string]*account // by normalized email
	incomes  map[core.ID][]core.Income
	products map[core.ID][]core.Product
}

func New(categories []string, tokens ports.TokenIssuer, autoApprove bool) *Store {
	names := dedupe(categories)
	cats := make([]core.Category, len(names))
	for i, n := range names {
		cats[i] = core.Category{ID: core.ID(strconv.Itoa(i + 1)), Name: n}
	}
	return &Store{
		tokens:      tokens,
		autoApprove: autoApprove,
		cats:        cats,
		accounts:    map[string]*account{},
		incomes:     map[core.ID][]core.Income{},
		products:    map[core.ID][]core.Product{},
	}
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back
// to a built-in list when the file is missing or empty.
func NewFromFiles(base string, tokens ports.TokenIssuer, autoApprove bool) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Kuliner", "Fashion", "Kerajinan", "Jasa"}
	}
	return New(cats, tokens, autoApprove)
}

func (s *Store) nextID(prefix string) core.ID {
	s.seq++
	return core.ID(fmt.Sprintf("%s-%d", prefix, s.seq))
}

func owner(p core.Principal) (core.ID, error) {
	if p.UMKMID.IsZero() {
		return "", core.ErrMissingPrincipal
	}
	return p.UMKMID, nil
}

// ListCategories implements ports.CategoryReader.
func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) Register(_ context.Context, r core.Registration) (core.Profile, error) {
	if err := r.Validate(); err != nil {
		return core.Profile{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email := core.NormalizeEmail(r.Email)
	if _, ok := s.accounts[email]; ok {
		return core.Profile{}, core.ErrEmailTaken
	}
	status := core.StatusPending
	if s.autoApprove {
		status = core.StatusApproved
	}
	p := core.ProfileFromRegistration(s.nextID("umkm"), r, status)
	s.accounts[email] = &account{profile: p, hash: hash}
	return p, nil
}

func (s *Store) Login(_ context.Context, c core.Credentials) (core.LoginResult, error) {
	if err := c.Validate(); err != nil {
		return core.LoginResult{}, err
	}
	s.mu.Lock()
	acc, ok := s.accounts[core.NormalizeEmail(c.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(c.Password)) != nil {
		return core.LoginResult{}, core.ErrInvalidCredentials
	}
	if acc.profile.Status != core.StatusApproved {
		return core.LoginResult{}, core.ErrPendingApproval
	}
	if s.tokens == nil {
		return core.LoginResult{}, fmt.Errorf("login: no token issuer configured")
	}
	token, err := s.tokens.Issue(acc.profile.ID, acc.profile.Email)
	if err != nil {
		return core.LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return core.LoginResult{Token: token, Profile: acc.profile}, nil
}

func (s *Store) Me(ctx context.Context, token string) (core.Profile, error) {
	if s.tokens == nil {
		return core.Profile{}, core.ErrUnauthorized
	}
	id, err := s.tokens.Parse(token)
	if err != nil {
		return core.Profile{}, core.ErrUnauthorized
	}
	p, err := s.GetProfile(ctx, core.Principal{UMKMID: id, Token: token})
	if err != nil {
		return core.Profile{}, core.ErrUnauthorized
	}
	return p, nil
}

// Approve activates a pending account.
func (s *Store) Approve(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[core.NormalizeEmail(email)]
	if !ok {
		return core.ErrNotFound
	}
	acc.profile.Status = core.StatusApproved
	return nil
}

func (s *Store) findAccount(id core.ID) *account {
	for _, acc := range s.accounts {
		if acc.profile.ID == id {
			return acc
		}
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, p core.Principal) (core.Profile, error) {
	id, err := owner(p)
	if err != nil {
		return core.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.findAccount(id)
	if acc == nil {
		return core.Profile{}, core.ErrNotFound
	}
	return acc.profile, nil
}

func (s *Store) UpdateProfile(_ context.Context, p core.Principal, prof core.Profile) (core.Profile, error) {
	id, err := owner(p)
	if err != nil {
		return core.Profile{}, err
	}
	if err := prof.Validate(); err != nil {
		return core.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.findAccount(id)
	if acc == nil {
		return core.Profile{}, core.ErrNotFound
	}
	prof.ID, prof.Email, prof.Status = acc.profile.ID, acc.profile.Email, acc.profile.Status
	prof.Images = append([]string(nil), prof.Images...)
	acc.profile = prof
	return prof, nil
}

func (s *Store) ListIncomes(_ context.Context, p core.Principal) ([]core.Income, error) {
	id, err := owner(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Income{}, s.incomes[id]...), nil
}

func (s *Store) CreateIncome(_ context.Context, p core.Principal, in core.Income) (core.Income, error) {
	id, err := owner(p)
	if err != nil {
		return core.Income{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = s.nextID("inc")
	s.incomes[id] = append(s.incomes[id], in)
	return in, nil
}

func (s *Store) UpdateIncome(_ context.Context, p core.Principal, in core.Income) (core.Income, error) {
	id, err := owner(p)
	if err != nil {
		return core.Income{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.incomes[id]
	for i := range list {
		if list[i].ID == in.ID {
			list[i] = in
			return in, nil
		}
	}
	return core.Income{}, core.ErrNotFound
}

func (s *Store) DeleteIncome(_ context.Context, p core.Principal, incomeID core.ID) error {
	id, err := owner(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.incomes[id]
	for i := range list {
		if list[i].ID == incomeID {
			s.incomes[id] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context, p core.Principal) ([]core.Product, error) {
	id, err := owner(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Product{}, s.products[id]...), nil
}

func (s *Store) CreateProduct(_ context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	id, err := owner(p)
	if err != nil {
		return core.Product{}, err
	}
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pr.ID = s.nextID("prd")
	s.products[id] = append(s.products[id], pr)
	return pr, nil
}

func (s *Store) UpdateProduct(_ context.Context, p core.Principal, pr core.Product) (core.Product, error) {
	id, err := owner(p)
	if err != nil {
		return core.Product{}, err
	}
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.products[id]
	for i := range list {
		if list[i].ID == pr.ID {
			list[i] = pr
			return pr, nil
		}
	}
	return core.Product{}, core.ErrNotFound
}

func (s *Store) DeleteProduct(_ context.Context, p core.Principal, productID core.ID) error {
	id, err := owner(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.products[id]
	for i := range list {
		if list[i].ID == productID {
			s.products[id] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
