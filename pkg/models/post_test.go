package models

import (
	"testing"

	json "github.com/json-iterator/go"
)

func TestPostContentIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content PostContent
		empty   bool
	}{
		{"text without content", PostContent{Type: PostTypeText}, true},
		{"text with content", PostContent{Type: PostTypeText, Content: "hi"}, false},
		{"text whitespace only", PostContent{Type: PostTypeText, Content: "   "}, true},
		{"card blank", PostContent{Type: PostTypeCard, Front: "", Back: ""}, true},
		{"card front only", PostContent{Type: PostTypeCard, Front: "a", Back: ""}, false},
		{"card back only", PostContent{Type: PostTypeCard, Back: "b"}, false},
		{"quiz without question", PostContent{Type: PostTypeQuiz, Options: []string{"a", "b", "c", "d"}}, true},
		{"quiz with question", PostContent{Type: PostTypeQuiz, Question: "2+2?"}, false},
		{"poll with question", PostContent{Type: PostTypePoll, Question: "Tea?"}, false},
		{"media with image only", PostContent{Type: PostTypeMedia, HasImage: true}, false},
		{"media with caption only", PostContent{Type: PostTypeMedia, Caption: "look"}, false},
		{"media empty", PostContent{Type: PostTypeMedia}, true},
		{"missing type behaves as text", PostContent{Content: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.content.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestParsePostType(t *testing.T) {
	for _, pt := range PostTypes() {
		got, err := ParsePostType(string(pt))
		if err != nil || got != pt {
			t.Errorf("ParsePostType(%q) = %q, %v", pt, got, err)
		}
	}
	if got, err := ParsePostType(" QUIZ "); err != nil || got != PostTypeQuiz {
		t.Errorf("ParsePostType should normalize case, got %q %v", got, err)
	}
	if _, err := ParsePostType("video"); err == nil {
		t.Error("unknown type should fail")
	}
}

func TestPostPublicDropsAnswers(t *testing.T) {
	idx := 2
	p := &Post{ID: "p1", PostContent: PostContent{
		Type:               PostTypeQuiz,
		Question:           "Capital of France?",
		Options:            []string{"Rome", "Berlin", "Paris", "Madrid"},
		CorrectOptionIndex: &idx,
		Explanation:        "Paris",
	}}

	pub := p.Public()
	if pub.CorrectOptionIndex != nil || pub.Explanation != "" {
		t.Error("public copy must not carry the answer")
	}
	if p.CorrectOptionIndex == nil {
		t.Error("original must be untouched")
	}

	b, err := json.Marshal(pub)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	if _, ok := m["correctOptionIndex"]; ok {
		t.Errorf("serialized public post leaks answer: %s", b)
	}
	if m["question"] != "Capital of France?" {
		t.Errorf("embedded payload should be inlined: %s", b)
	}
}

func TestNotificationTarget(t *testing.T) {
	tests := []struct {
		n    Notification
		kind TargetKind
		id   string
	}{
		{Notification{Type: NotificationLike, PostID: "p1"}, TargetPost, "p1"},
		{Notification{Type: NotificationMention, PostID: "p2"}, TargetPost, "p2"},
		{Notification{Type: NotificationFollow, ActorID: "u9"}, TargetProfile, "u9"},
		{Notification{Type: NotificationSystem}, TargetNone, ""},
		{Notification{Type: NotificationComment}, TargetNone, ""},
	}
	for _, tt := range tests {
		kind, id := tt.n.Target()
		if kind != tt.kind || id != tt.id {
			t.Errorf("%s: Target() = %q %q", tt.n.Type, kind, id)
		}
	}
}

func TestConversationTitle(t *testing.T) {
	c := Conversation{
		Participants:     []string{"me", "u2"},
		ParticipantNames: map[string]string{"u2": "Rahul"},
	}
	if c.Title("me") != "Rahul" {
		t.Errorf("Title = %q", c.Title("me"))
	}
	c.ParticipantNames = nil
	if c.Title("me") != "u2" {
		t.Errorf("Title without names = %q", c.Title("me"))
	}
}

func TestJudge(t *testing.T) {
	idx := 2
	quiz := &Post{PostContent: PostContent{Type: PostTypeQuiz, Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: &idx}}
	poll := &Post{PostContent: PostContent{Type: PostTypePoll, CorrectAnswer: "yes", Explanation: "Because."}}

	tests := []struct {
		name    string
		post    *Post
		answer  string
		correct bool
		wantErr bool
	}{
		{"quiz right", quiz, "2", true, false},
		{"quiz wrong", quiz, "0", false, false},
		{"quiz out of range", quiz, "4", false, true},
		{"quiz not a number", quiz, "b", false, true},
		{"poll right", poll, "YES", true, false},
		{"poll wrong", poll, "no", false, false},
		{"poll invalid", poll, "maybe", false, true},
		{"text", &Post{PostContent: PostContent{Type: PostTypeText}}, "1", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Judge(tt.post, tt.answer)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Judge(%q) expected error", tt.answer)
				}
				return
			}
			if err != nil {
				t.Fatalf("Judge(%q) error = %v", tt.answer, err)
			}
			if v.Correct != tt.correct {
				t.Errorf("Judge(%q).Correct = %v, want %v", tt.answer, v.Correct, tt.correct)
			}
		})
	}

	v, _ := Judge(quiz, "1")
	if v.CorrectOptionIndex != 2 || v.Explanation != DefaultExplanation {
		t.Errorf("quiz verdict = %+v", v)
	}
}
