package e2e

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type groupsSuite struct {
	BaseSuite
}

func TestGroupsSuite(t *testing.T) {
	suite.Run(t, &groupsSuite{})
}

func (s *groupsSuite) TestStudyGroupRelaysChat() {
	alice := s.Client("alice")
	bob := s.Client("bob")
	var port int

	s.Run("Step 1: alice creates study and joins it", func() {
		s.Step("create and join")
		created, err := alice.Create("study")
		s.Require().NoError(err)
		joined, err := alice.Join("study")
		s.Require().NoError(err)
		s.Require().Equal(created, joined)
		port = joined
	})
	defer func() { _ = alice.Delete("study") }()

	s.Run("Step 2: a lone member is relayed to nobody", func() {
		s.Step("alice says hi alone")
		s.Require().NoError(alice.Say(port, "hi"))
		s.Silent(alice)
	})

	s.Run("Step 3: the second member reaches the first exactly once", func() {
		s.Step("bob says yo")
		_, err := bob.Join("study")
		s.Require().NoError(err)
		s.Require().NoError(bob.Say(port, "yo"))

		m, err := alice.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.NewMessage(domain.OrderChat, "bob", "yo"), m)
		s.Silent(alice)
		s.Silent(bob)
	})

	s.Run("Step 4: the transcript answers history and search", func() {
		s.Step("history and search")
		answers, err := alice.Command(port, "history")
		s.Require().NoError(err)
		s.Require().Len(answers, 2)
		s.Require().Contains(answers[0].Text, "alice: hi")
		s.Require().Contains(answers[1].Text, "bob: yo")

		answers, err = alice.Command(port, "search yo")
		s.Require().NoError(err)
		s.Require().Len(answers, 1)
		s.Require().Equal("1 match(es), latest bob: yo", answers[0].Text)
	})
}

func (s *groupsSuite) TestModeratorBansMember() {
	alice := s.Client("alice")
	bob := s.Client("bob")

	port, err := alice.Create("club")
	s.Require().NoError(err)
	defer func() { _ = alice.Delete("club") }()

	s.Run("Step 1: both members talk", func() {
		s.Require().NoError(alice.Say(port, "welcome"))
		s.Require().NoError(bob.Say(port, "hey"))
		m, err := alice.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal("hey", m.Text)
	})

	s.Run("Step 2: bob cannot ban", func() {
		answers, err := bob.Command(port, "ban alice")
		s.Require().NoError(err)
		s.Require().Len(answers, 1)
		s.Require().Equal(domain.OrderError, answers[0].Order)
		s.Require().Equal(errors.ErrUnauthorized.Error(), answers[0].Text)
	})

	s.Run("Step 3: alice bans bob", func() {
		s.Step("ban bob")
		answers, err := alice.Command(port, "ban bob")
		s.Require().NoError(err)
		s.Require().Equal("bob banned", answers[0].Text)

		m, err := bob.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.OrderBan, m.Order)
		s.Require().Equal("you have been banned from club", m.Text)
	})

	s.Run("Step 4: bob is refused and alice hears nothing", func() {
		s.Require().NoError(bob.Say(port, "let me in"))
		m, err := bob.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.OrderBan, m.Order)
		s.Silent(alice)

		answers, err := alice.Command(port, "list")
		s.Require().NoError(err)
		s.Require().Equal("members: alice*", answers[0].Text)
	})
}

func (s *groupsSuite) TestFusionRedirectsMembers() {
	alice := s.Client("alice")
	bob := s.Client("bob")

	dest, err := alice.Create("alpha")
	s.Require().NoError(err)
	defer func() { _ = alice.Delete("alpha") }()
	source, err := alice.Create("beta")
	s.Require().NoError(err)

	s.Require().NoError(alice.Say(dest, "here"))
	s.Require().NoError(bob.Say(source, "there"))

	s.Run("Step 1: only the moderator of both groups may fuse", func() {
		err := bob.Fuse("alpha", "beta")
		s.Require().ErrorIs(err, errors.ErrRejected)
	})

	s.Run("Step 2: fusion redirects then dissolves the source", func() {
		s.Step("fuse beta into alpha")
		s.Require().NoError(alice.Fuse("alpha", "beta"))

		m, err := bob.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.OrderRedirect, m.Order)
		s.Require().Equal(fmt.Sprintf("alpha %d", dest), m.Text)

		m, err = alice.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.NewMessage(domain.OrderChat, domain.SystemSender, "groups alpha and beta have been merged"), m)

		_, err = alice.Join("beta")
		s.Require().ErrorIs(err, errors.ErrRejected)
	})
}

func (s *groupsSuite) TestDeleteClosesGroup() {
	alice := s.Client("alice")
	bob := s.Client("bob")

	port, err := alice.Create("gamma")
	s.Require().NoError(err)
	s.Require().NoError(bob.Say(port, "hello"))
	s.Silent(bob)

	s.Run("Step 1: only the moderator deletes", func() {
		s.Require().ErrorIs(bob.Delete("gamma"), errors.ErrRejected)
	})

	s.Run("Step 2: members get the end notice", func() {
		s.Step("delete gamma")
		s.Require().NoError(alice.Delete("gamma"))
		m, err := bob.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.OrderEnd, m.Order)
		s.Require().Equal("group gamma is closed", m.Text)

		groups, err := alice.List()
		s.Require().NoError(err)
		for _, g := range groups {
			s.Require().NotEqual("gamma", g.Name)
		}
	})
}

func (s *groupsSuite) TestCreateRightAfterDelete() {
	alice := s.Client("alice")
	bob := s.Client("bob")

	port, err := alice.Create("delta")
	s.Require().NoError(err)
	s.Require().NoError(bob.Say(port, "hello"))
	s.Silent(bob)

	s.Run("Step 1: a group created right after a delete gets a working relay", func() {
		s.Step("delete delta then create epsilon")
		s.Require().NoError(alice.Delete("delta"))
		again, err := alice.Create("epsilon")
		s.Require().NoError(err)
		defer func() { _ = alice.Delete("epsilon") }()

		m, err := bob.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.OrderEnd, m.Order)

		s.Require().NoError(alice.Say(again, "welcome"))
		s.Require().NoError(bob.Say(again, "thanks"))
		m, err = alice.Receive(s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal(domain.NewMessage(domain.OrderChat, "bob", "thanks"), m)
	})
}
