package domain

import (
	"time"
)

// Address 地址值对象，嵌入在个人资料中并在下单时复制到订单
type Address struct {
	Province   string `json:"province"`
	City       string `json:"city"`
	District   string `json:"district"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

// IsZero 判断地址是否为空
func (a Address) IsZero() bool {
	return a == Address{}
}

// Profile 用户资料，与会话身份一一对应（ID 即用户 ID）
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   *Address  `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfilePatch 个人资料的部分更新，nil 字段保持不变
type ProfilePatch struct {
	Username  *string  `json:"username,omitempty"`
	FullName  *string  `json:"full_name,omitempty" binding:"omitempty,max=100"`
	AvatarURL *string  `json:"avatar_url,omitempty" binding:"omitempty,url"`
	Phone     *string  `json:"phone,omitempty" binding:"omitempty,max=32"`
	Address   *Address `json:"address,omitempty"`
}

// IsEmpty 判断补丁是否没有任何字段
func (p ProfilePatch) IsEmpty() bool {
	return p.Username == nil && p.FullName == nil && p.AvatarURL == nil && p.Phone == nil && p.Address == nil
}

// Apply 将补丁应用到资料上
func (p ProfilePatch) Apply(profile *Profile) {
	if p.Username != nil {
		profile.Username = *p.Username
	}
	if p.FullName != nil {
		profile.FullName = *p.FullName
	}
	if p.AvatarURL != nil {
		profile.AvatarURL = *p.AvatarURL
	}
	if p.Phone != nil {
		profile.Phone = *p.Phone
	}
	if p.Address != nil {
		addr := *p.Address
		profile.Address = &addr
	}
}

// Fields 以列名为键返回补丁中的非空字段，供后端驱动构造更新语句
func (p ProfilePatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Username != nil {
		fields["username"] = *p.Username
	}
	if p.FullName != nil {
		fields["full_name"] = *p.FullName
	}
	if p.AvatarURL != nil {
		fields["avatar_url"] = *p.AvatarURL
	}
	if p.Phone != nil {
		fields["phone"] = *p.Phone
	}
	if p.Address != nil {
		fields["address"] = *p.Address
	}
	return fields
}
