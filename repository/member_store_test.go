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

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/datajpa/database"
	"github.com/tomoncle/datajpa/entity"
	"github.com/tomoncle/datajpa/persistence"
)

func newStore(t *testing.T) (*MemberStore, *database.QueryCounter) {
	t.Helper()
	db, counter := openDB(t)
	return NewMemberStore(persistence.New(db)), counter
}

func TestStoreSaveAndFind(t *testing.T) {
	ctx := context.Background()
	store, counter := newStore(t)

	member, err := store.Save(ctx, entity.NewMember("memberA", 0, nil))
	require.NoError(t, err)

	counter.Reset()
	found, err := store.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Same(t, member, found, "the context returns the managed instance")
	assert.Zero(t, counter.Total())

	missing, err := store.Find(ctx, member.ID+1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.FindByID(ctx, member.ID+1)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStoreBasicCRUD(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	member1, err := store.Save(ctx, entity.NewMember("member1", 0, nil))
	require.NoError(t, err)
	member2, err := store.Save(ctx, entity.NewMember("member2", 0, nil))
	require.NoError(t, err)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Delete(ctx, member1))
	require.NoError(t, store.Delete(ctx, member2))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStoreDirtyCheckingOnCount(t *testing.T) {
	ctx := context.Background()
	store, counter := newStore(t)
	member, err := store.Save(ctx, entity.NewMember("member1", 10, nil))
	require.NoError(t, err)

	member.Username = "renamed"
	counter.Reset()
	_, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.Count("UPDATE"), "count flushes the rename first")

	store.Context().Clear()
	reloaded, err := store.FindByID(ctx, member.ID)
	require.NoError(t, err)
	assert.NotSame(t, member, reloaded)
	assert.Equal(t, "renamed", reloaded.Username)
}

func TestStoreFinders(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	for _, m := range []*entity.Member{
		entity.NewMember("AAA", 10, nil),
		entity.NewMember("AAA", 20, nil),
		entity.NewMember("BBB", 20, nil),
	} {
		_, err := store.Save(ctx, m)
		require.NoError(t, err)
	}

	older, err := store.FindByUsernameAndAgeGreaterThan(ctx, "AAA", 15)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, 20, older[0].Age)

	named, err := store.FindByUsername(ctx, "BBB")
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB"}, usernames(named))
}

func TestStorePaging(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	for i := 1; i <= 5; i++ {
		_, err := store.Save(ctx, entity.NewMember(fmt.Sprintf("member%d", i), 10, nil))
		require.NoError(t, err)
	}

	page, err := store.FindByPage(ctx, 10, 0, 3)
	require.NoError(t, err)
	total, err := store.TotalCount(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"member5", "member4", "member3"}, usernames(page))
	assert.Equal(t, 5, total)
}

func TestStoreBulkAgePlusClearsContext(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	ages := []int{10, 19, 20, 21, 40}
	var last *entity.Member
	for i, age := range ages {
		m, err := store.Save(ctx, entity.NewMember(fmt.Sprintf("member%d", i+1), age, nil))
		require.NoError(t, err)
		last = m
	}

	n, err := store.BulkAgePlus(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, store.Context().Size())
	assert.Equal(t, 40, last.Age, "detached instances keep the old value")

	result, err := store.FindByUsername(ctx, "member5")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 41, result[0].Age)
}

func TestStoreReadOnlyHint(t *testing.T) {
	ctx := context.Background()
	store, counter := newStore(t)
	_, err := store.Save(ctx, entity.NewMember("member1", 10, nil))
	require.NoError(t, err)
	store.Context().Clear()

	found, err := store.FindReadOnlyByUsername(ctx, "member1")
	require.NoError(t, err)
	assert.True(t, store.Context().IsReadOnly(found))

	found.Username = "member2"
	counter.Reset()
	flushed, err := store.Context().Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, flushed)
	assert.Zero(t, counter.Count("UPDATE"))

	_, err = store.FindReadOnlyByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStoreChangeTeamInTransaction(t *testing.T) {
	ctx := context.Background()
	db, _ := openDB(t)
	teams := NewTeamRepository(db)
	teamA := entity.NewTeam("teamA")
	teamB := entity.NewTeam("teamB")
	saveTeams(t, teams, teamA, teamB)
	saveMembers(t, NewMemberRepository(db), entity.NewMember("member1", 10, teamA))

	err := persistence.Transactional(ctx, db, func(ctx context.Context, pc *persistence.Context) error {
		store := NewMemberStore(pc)
		members, err := store.FindByUsername(ctx, "member1")
		if err != nil {
			return err
		}
		members[0].ChangeTeam(teamB)
		return nil
	})
	require.NoError(t, err)

	fetched, err := NewMemberRepository(db).FindMemberFetchJoin(ctx)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.NotNil(t, fetched[0].Team)
	assert.Equal(t, "teamB", fetched[0].Team.Name)
}
