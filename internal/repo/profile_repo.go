package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MorseWayne/storefront/internal/domain"
)

const profileSelect = `SELECT id, username, full_name, avatar_url, phone, address, created_at, updated_at FROM profiles`

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	var address []byte
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.Phone, &address, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(address) > 0 {
		var a domain.Address
		if err := decodeJSON(address, &a); err != nil {
			return nil, fmt.Errorf("decode address of profile %s: %w", p.ID, err)
		}
		p.Address = &a
	}
	return &p, nil
}

// GetProfile 没有资料行时返回 (nil, nil)
func (d *Driver) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if err := d.authorize(ctx, userID, "get profile"); err != nil {
		return nil, err
	}
	p, err := scanProfile(d.db.QueryRowContext(ctx, profileSelect+` WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// CreateProfile 插入资料行；已存在时保留原有内容
func (d *Driver) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if err := d.authorize(ctx, profile.ID, "create profile"); err != nil {
		return nil, err
	}
	var address any
	if profile.Address != nil {
		var err error
		if address, err = jsonColumn(profile.Address); err != nil {
			return nil, err
		}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT IGNORE INTO profiles (id, username, full_name, avatar_url, phone, address)
		VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.Username, profile.FullName, profile.AvatarURL, profile.Phone, address)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	p, err := scanProfile(d.db.QueryRowContext(ctx, profileSelect+` WHERE id = ?`, profile.ID))
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return p, nil
}

// profileColumns 是允许局部更新的列
var profileColumns = map[string]bool{
	"username":   true,
	"full_name":  true,
	"avatar_url": true,
	"phone":      true,
	"address":    true,
}

// UpdateProfile 局部更新，只写补丁中出现的列
func (d *Driver) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	if err := d.authorize(ctx, userID, "update profile"); err != nil {
		return nil, err
	}
	fields := patch.Fields()
	if len(fields) > 0 {
		cols := make([]string, 0, len(fields))
		for col := range fields {
			if !profileColumns[col] {
				return nil, fmt.Errorf("unknown profile column %q", col)
			}
			cols = append(cols, col)
		}
		sort.Strings(cols)

		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+1)
		for i, col := range cols {
			sets[i] = col + " = ?"
			v := fields[col]
			if col == "address" {
				encoded, err := jsonColumn(v)
				if err != nil {
					return nil, err
				}
				v = encoded
			}
			args = append(args, v)
		}
		args = append(args, userID)
		if _, err := d.db.ExecContext(ctx, `UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	p, err := scanProfile(d.db.QueryRowContext(ctx, profileSelect+` WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return p, nil
}
