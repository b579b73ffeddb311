// Package population is the in-cycle view of the entity repository: the rows
// loaded from the store plus everything the current cycle creates, mutates or
// deletes. Engines read and change it in place; the store only sees the
// resulting commands at commit time.
package population

import (
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// Population tracks users and posts in a stable order. Order matters: every
// random choice indexes into these slices, so the same store contents must
// always produce the same order.
type Population struct {
	users     []*models.User
	posts     []*models.Post
	userIndex map[models.ID]*models.User
	postIndex map[models.ID]*models.Post
}

// New builds a population from stored rows. Deleted rows are dropped: no
// engine may touch them again.
func New(users []models.User, posts []models.Post) *Population {
	p := &Population{
		userIndex: make(map[models.ID]*models.User, len(users)),
		postIndex: make(map[models.ID]*models.Post, len(posts)),
	}
	for i := range users {
		if !users[i].Lifecycle.IsDeleted() {
			u := users[i]
			p.addUser(&u)
		}
	}
	for i := range posts {
		if !posts[i].Lifecycle.IsDeleted() {
			post := posts[i]
			p.addPost(&post)
		}
	}
	return p
}

func (p *Population) addUser(u *models.User) {
	p.users = append(p.users, u)
	p.userIndex[u.ID] = u
}

func (p *Population) addPost(post *models.Post) {
	p.posts = append(p.posts, post)
	p.postIndex[post.ID] = post
}

// AddUser registers a newly created user.
func (p *Population) AddUser(u models.User) error {
	if _, ok := p.userIndex[u.ID]; ok {
		return simerr.Consistency("population.add_user", "duplicate user id %s", u.ID)
	}
	p.addUser(&u)
	return nil
}

// AddPost registers a newly created post. The owner must be living.
func (p *Population) AddPost(post models.Post) error {
	owner, ok := p.userIndex[post.UserID]
	if !ok || owner.Lifecycle.IsDeleted() {
		return simerr.Consistency("population.add_post", "post %s owner %s is not a living user", post.ID, post.UserID)
	}
	if _, ok := p.postIndex[post.ID]; ok {
		return simerr.Consistency("population.add_post", "duplicate post id %s", post.ID)
	}
	p.addPost(&post)
	return nil
}

// User returns the user with id, living or deleted this cycle.
func (p *Population) User(id models.ID) (*models.User, bool) {
	u, ok := p.userIndex[id]
	return u, ok
}

// Post returns the post with id, living or deleted this cycle.
func (p *Population) Post(id models.ID) (*models.Post, bool) {
	post, ok := p.postIndex[id]
	return post, ok
}

// LivingUsers returns the users not deleted, in population order.
func (p *Population) LivingUsers() []*models.User {
	out := make([]*models.User, 0, len(p.users))
	for _, u := range p.users {
		if !u.Lifecycle.IsDeleted() {
			out = append(out, u)
		}
	}
	return out
}

// LivingPosts returns the posts not deleted, in population order.
func (p *Population) LivingPosts() []*models.Post {
	out := make([]*models.Post, 0, len(p.posts))
	for _, post := range p.posts {
		if !post.Lifecycle.IsDeleted() {
			out = append(out, post)
		}
	}
	return out
}

// DeleteUser soft-deletes a living user.
func (p *Population) DeleteUser(d models.Deletion) error {
	u, ok := p.userIndex[d.ID]
	if !ok {
		return simerr.Consistency("population.delete_user", "unknown user %s", d.ID)
	}
	lc, err := u.Lifecycle.Delete(d.DeletedAt)
	if err != nil {
		return simerr.Consistency("population.delete_user", "user %s: %v", d.ID, err)
	}
	u.Lifecycle = lc
	return nil
}

// DeletePost soft-deletes a living post.
func (p *Population) DeletePost(d models.Deletion) error {
	post, ok := p.postIndex[d.ID]
	if !ok {
		return simerr.Consistency("population.delete_post", "unknown post %s", d.ID)
	}
	lc, err := post.Lifecycle.Delete(d.DeletedAt)
	if err != nil {
		return simerr.Consistency("population.delete_post", "post %s: %v", d.ID, err)
	}
	post.Lifecycle = lc
	return nil
}

// UpdateUser applies an update command to a living user.
func (p *Population) UpdateUser(cmd models.UserUpdate) error {
	u, ok := p.userIndex[cmd.ID]
	if !ok || u.Lifecycle.IsDeleted() {
		return simerr.Consistency("population.update_user", "user %s is not living", cmd.ID)
	}
	if cmd.LastName != nil {
		u.LastName = *cmd.LastName
	}
	if cmd.CountryCode != nil {
		u.CountryCode = *cmd.CountryCode
	}
	if cmd.FavoriteColor != nil {
		u.FavoriteColor = *cmd.FavoriteColor
	}
	u.UpdatedAt = cmd.UpdatedAt
	return nil
}

// UpdatePost applies an update command to a living post.
func (p *Population) UpdatePost(cmd models.PostUpdate) error {
	post, ok := p.postIndex[cmd.ID]
	if !ok || post.Lifecycle.IsDeleted() {
		return simerr.Consistency("population.update_post", "post %s is not living", cmd.ID)
	}
	post.Text = cmd.Text
	post.UpdatedAt = cmd.UpdatedAt
	return nil
}
