package model

import "time"

// Employee は従業員の表示用レコードを表す。
// 従業員は外部で登録・更新され、このアプリケーションからは読み取り専用。
type Employee struct {
	ID          string
	Name        string
	Email       string
	Designation string
	CreatedAt   time.Time
}

// EmployeeRef は給与エントリの表示用に結合された従業員情報。
type EmployeeRef struct {
	Name  string
	Email string
}
