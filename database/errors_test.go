/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSqlErrorMySQLCodes(t *testing.T) {
	cases := map[uint16]SQLError{
		1062: DuplicateKeyErr,
		1146: NoTableErr,
		1054: NoColumnErr,
		1048: NotNullViolationErr,
		1452: ForeignKeyViolationErr,
		3819: CheckConstraintViolationErr,
		1406: DataTruncatedErr,
		9999: UnknownErr,
	}
	for code, want := range cases {
		err := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: code, Message: "boom"})
		is, kind := IsSqlError(err)
		assert.True(t, is, "code %d", code)
		assert.Equal(t, want, kind, "code %d", code)
	}
}

func TestIsSqlErrorMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want SQLError
	}{
		{`pq: duplicate key value violates unique constraint "users_pkey"`, DuplicateKeyErr},
		{"constraint failed: UNIQUE constraint failed: users.name (2067)", DuplicateKeyErr},
		{`pq: relation "users" does not exist (SQLSTATE 42P01)`, NoTableErr},
		{"SQL logic error: no such table: users (1)", NoTableErr},
		{"no such column: nickname", NoColumnErr},
		{"NOT NULL constraint failed: users.name", NotNullViolationErr},
		{"FOREIGN KEY constraint failed", ForeignKeyViolationErr},
		{`pq: new row violates check constraint "age_positive"`, CheckConstraintViolationErr},
	}
	for _, tc := range cases {
		is, kind := IsSqlError(errors.New(tc.msg))
		assert.True(t, is, tc.msg)
		assert.Equal(t, tc.want, kind, tc.msg)
	}
}

func TestIsSqlErrorUnrelated(t *testing.T) {
	is, kind := IsSqlError(nil)
	assert.False(t, is)
	assert.Equal(t, UnknownErr, kind)

	is, _ = IsSqlError(errors.New("connection refused"))
	assert.False(t, is)
	assert.False(t, IsDuplicateKey(context.Canceled))
}

func TestIsDuplicateKeyFromSqlite(t *testing.T) {
	db := openTestDB(t, "dup")
	ctx := context.Background()
	_, err := db.NewCreateTable().Model((*account)(nil)).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&account{Email: "a@example.com"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&account{Email: "a@example.com"}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}
