package password

import (
	"golang.org/x/crypto/bcrypt"
)

// 以 bcrypt 雜湊與驗證密碼
type Hasher struct {
	cost int
}

// cost 超出 bcrypt 範圍時使用預設值
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// 產生雜湊，每次呼叫使用新的隨機鹽值
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// 密碼錯誤或雜湊格式不正確皆回傳false
func (h *Hasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
