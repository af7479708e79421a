// Package models defines the fee ledger records shared by the service and storage layers.
//
// # Records
//
//   - Student: one row of the fee ledger, keyed by admission number
//   - PaymentRequest: a payment notification as received from M-Pesa or an operator
//   - Payment: the recorded transaction with its allocations and credit shares
//
// Amounts are whole currency units (KES) held as int64. Balances are what a student
// still owes; zero means settled and a negative balance is money held on account.
//
// # Relationships
//
// Records reference each other by ID strings (admission number, payment ID) rather
// than pointers, so the storage backends can load them independently.
package models
