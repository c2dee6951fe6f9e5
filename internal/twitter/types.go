package twitter

import "encoding/json"

// Raw GraphQL timeline shapes. Only the fields the parser consumes are
// declared; everything else is ignored by the decoder.

type timelineResponse struct {
	Data struct {
		Home struct {
			HomeTimelineUrt timelineObj `json:"home_timeline_urt"`
		} `json:"home"`
	} `json:"data"`
}

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	EntryID string          `json:"entryId"`
	Content timelineContent `json:"content"`
}

type timelineContent struct {
	EntryType   string          `json:"entryType"`
	TypeName    string          `json:"__typename"`
	ItemContent json.RawMessage `json:"itemContent"`
}

type timelineItem struct {
	TypeName     string `json:"__typename"`
	TweetResults struct {
		Result tweetResult `json:"result"`
	} `json:"tweet_results"`
}

type userResult struct {
	RestID string `json:"rest_id"`
	Legacy struct {
		Name            string `json:"name"`
		ScreenName      string `json:"screen_name"`
		ProfileImageURL string `json:"profile_image_url_https"`
	} `json:"legacy"`
}

type mediaEntity struct {
	MediaURL string `json:"media_url_https"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

type urlEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

type tagEntity struct {
	Text string `json:"text"`
}

type tweetLegacy struct {
	FullText             string `json:"full_text"`
	InReplyToScreenName  string `json:"in_reply_to_screen_name"`
	RetweetedStatusIDStr string `json:"retweeted_status_id_str"`
	Entities             struct {
		URLs     []urlEntity   `json:"urls"`
		Symbols  []tagEntity   `json:"symbols"`
		Hashtags []tagEntity   `json:"hashtags"`
		Media    []mediaEntity `json:"media"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []mediaEntity `json:"media"`
	} `json:"extended_entities"`
	RetweetedStatusResult *struct {
		Result *tweetResult `json:"result"`
	} `json:"retweeted_status_result"`
}

type tweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Core     struct {
		UserResults struct {
			Result userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy             tweetLegacy `json:"legacy"`
	QuotedStatusResult *struct {
		Result *tweetResult `json:"result"`
	} `json:"quoted_status_result"`
	Tweet *tweetResult `json:"tweet"` // TweetWithVisibilityResults wrapper
}
