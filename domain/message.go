// Package domain contains core concepts of the group chat relay.
// This file defines the single datagram shape exchanged by every process.
// No runtime or network logic should be added here.
package domain

// Order is the three-letter code carried by every datagram.
type Order string

// Directory-facing orders.
const (
	OrderConnect    Order = "CON"
	OrderDisconnect Order = "DEC"
	OrderCreate     Order = "CRG"
	OrderDelete     Order = "DEL"
	OrderList       Order = "LST"
	OrderJoin       Order = "JNG"
	OrderFuse       Order = "FUS"
)

// Relay-facing orders. QUT and MIG are only accepted from the directory.
const (
	OrderRegister Order = "REG"
	OrderChat     Order = "MSG"
	OrderCommand  Order = "CMD"
	OrderQuit     Order = "QUT"
	OrderRedirect Order = "MIG"
)

// Outbound-only orders.
const (
	OrderAck      Order = "ACK"
	OrderError    Order = "ERR"
	OrderReply    Order = "REP"
	OrderResponse Order = "RSP"
	OrderBan      Order = "BAN"
	OrderEnd      Order = "FIN"
)

const (
	SystemSender    = "SYSTEM"
	DirectorySender = "Directory"
	GroupSender     = "Group"
)

// Message is the fixed-shape datagram {Order, Sender, Text}.
type Message struct {
	Order  Order
	Sender string
	Text   string
}

func NewMessage(order Order, sender, text string) Message {
	return Message{Order: order, Sender: sender, Text: text}
}
