package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	OrderStatusPendente  = "pendente"
	OrderStatusAprovado  = "aprovado"
	OrderStatusCancelado = "cancelado"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"nome"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
	Phone        string `json:"telefone"`
	Address      string `json:"endereco"`
	CEP          string `json:"cep"`
	AvatarURL    string `json:"avatar"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	Code        string          `gorm:"index"                       json:"codigo"`
	Name        string          `gorm:"not null"                    json:"nome"`
	Description string          `gorm:"type:text"                   json:"descricao"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"preco"`
	Stock       uint            `gorm:"not null;default:0"          json:"estoque"`
	Category    string          `gorm:"index"                       json:"categoria"`
	Color       string          `json:"cor"`
	Model       string          `json:"modelo"`
	ImageURL    string          `json:"imagem"`
	Weight      float64         `gorm:"type:decimal(8,3);default:0" json:"peso"`
	Width       float64         `gorm:"type:decimal(8,2);default:0" json:"largura"`
	Height      float64         `gorm:"type:decimal(8,2);default:0" json:"altura"`
	Length      float64         `gorm:"type:decimal(8,2);default:0" json:"comprimento"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement"                       json:"id"`
	UserID    uint `gorm:"uniqueIndex:idx_user_product;not null"          json:"user_id"`
	ProductID uint `gorm:"uniqueIndex:idx_user_product;not null"          json:"produto_id"`
	Quantity  uint `gorm:"default:1;check:quantity>0"                     json:"quantidade"`
}

// OrderItem carries a frozen copy of the product fields at order time. Later
// edits or deletion of the product never change what an order shows.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID   uint            `gorm:"index;not null"              json:"pedido_id"`
	ProductID uint            `gorm:"not null"                    json:"produto_id"`
	Name      string          `gorm:"not null"                    json:"nome"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"preco_unitario"`
	Quantity  uint            `gorm:"not null"                    json:"quantidade"`
	ImageURL  string          `json:"imagem"`
	Color     string          `json:"cor"`
	Model     string          `json:"modelo"`
}

type Order struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	UserID     uint            `gorm:"index;not null"                    json:"user_id"`
	Name       string          `gorm:"not null"                          json:"nome"`
	Email      string          `gorm:"not null"                          json:"email"`
	Phone      string          `json:"telefone"`
	Address    string          `json:"endereco"`
	CEP        string          `json:"cep"`
	Frete      decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"frete"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"       json:"total"`
	Status     string          `gorm:"not null;default:pendente;index"   json:"status"`
	Shipped    bool            `gorm:"default:false"                     json:"enviado"`
	ShippedAt  *time.Time      `json:"enviado_em,omitempty"`
	PaymentRef uuid.UUID       `gorm:"type:uuid;index"                   json:"referencia_pagamento"`
	CreatedAt  time.Time       `json:"criado_em"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID"                json:"itens"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Token     string    `gorm:"unique;not null" json:"token"`
	UserID    uint      `gorm:"index;not null"  json:"user_id"`
	Role      string    `gorm:"not null"        json:"role"`
	ExpiresAt time.Time `gorm:"not null"        json:"expires_at"`
	Revoked   bool      `gorm:"default:false"   json:"revoked"`
}
