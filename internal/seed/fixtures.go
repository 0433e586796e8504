package seed

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strings"

	"gatekeeper/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// Fixtures is a hand-written data set loaded from YAML.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Posts []PostFixture `yaml:"posts"`
}

type UserFixture struct {
	UserName string   `yaml:"user_name"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
	Disabled bool     `yaml:"disabled"`
}

type PostFixture struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	Author  string `yaml:"author"`
	Status  string `yaml:"status"`
}

// ParseFixtures decodes and validates a fixture document.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	names := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if strings.TrimSpace(u.UserName) == "" {
			return nil, fmt.Errorf("users[%d]: user_name is required", i)
		}
		if names[u.UserName] {
			return nil, fmt.Errorf("users[%d]: duplicate user_name %q", i, u.UserName)
		}
		names[u.UserName] = true
		for _, r := range u.Roles {
			if _, ok := models.ParseRole(r); !ok {
				return nil, fmt.Errorf("users[%d]: unknown role %q", i, r)
			}
		}
	}
	for i, p := range fx.Posts {
		if !names[p.Author] {
			return nil, fmt.Errorf("posts[%d]: unknown author %q", i, p.Author)
		}
		if p.Status != "" && !models.PostStatus(strings.ToUpper(p.Status)).Valid() {
			return nil, fmt.Errorf("posts[%d]: unknown status %q", i, p.Status)
		}
	}
	return &fx, nil
}

// LoadFixtures reads a fixture file. The name "demo" selects the bundled set.
func LoadFixtures(path string) (*Fixtures, error) {
	var (
		raw []byte
		err error
	)
	if path == "demo" {
		raw, err = fixtureFS.ReadFile("fixtures/demo.yaml")
	} else {
		// #nosec G304: path comes from CLI flags in a dev tool
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ApplyFixtures writes fx in one transaction. Users without roles get
// ROLE_USER and users without a password get DefaultPassword.
func (s *Seeder) ApplyFixtures(ctx context.Context, fx *Fixtures) (*Result, error) {
	res := &Result{ByStatus: map[models.PostStatus]int{}}
	if s.opts.DryRun {
		return res, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]*models.User, len(fx.Users))
		for _, uf := range fx.Users {
			password := uf.Password
			if password == "" {
				password = DefaultPassword
			}
			cost := bcrypt.DefaultCost
			if s.opts.SkipBcrypt {
				cost = bcrypt.MinCost
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			roles := models.NewRoleSet()
			for _, r := range uf.Roles {
				role, _ := models.ParseRole(r)
				roles = roles.Add(role)
			}
			if len(roles) == 0 {
				roles = models.NewRoleSet(models.DefaultRole)
			}
			u := &models.User{
				UserName: uf.UserName,
				Password: string(hashed),
				Active:   !uf.Disabled,
				Roles:    roles,
			}
			if err := tx.Create(u).Error; err != nil {
				return fmt.Errorf("create user %s: %w", uf.UserName, err)
			}
			byName[u.UserName] = u
			res.Users = append(res.Users, u)
		}

		for _, pf := range fx.Posts {
			author := byName[pf.Author]
			status := models.PostStatus(strings.ToUpper(pf.Status))
			if status == "" {
				status = models.PostStatusPending
			}
			authorID := author.ID
			p := &models.Post{
				Title:    pf.Title,
				Content:  pf.Content,
				UserName: author.UserName,
				UserID:   &authorID,
				Status:   status,
			}
			if status == models.PostStatusPendingDeletion || status == models.PostStatusDeleted {
				token := uuid.NewString()
				p.DeletionRequestID = &token
			}
			if err := tx.Create(p).Error; err != nil {
				return fmt.Errorf("create post %q: %w", pf.Title, err)
			}
			res.Posts = append(res.Posts, p)
			res.ByStatus[status]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
